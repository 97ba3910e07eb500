// Package store is the SQLite reference executor for query plans.
//
// It renders plans with internal/querysql and runs them through
// github.com/mattn/go-sqlite3. A dedicated driver name installs two things
// on every connection:
//
//   - qm_bucket(value, granularity, offset_minutes, zone), the time bucket
//     function grouped plans render to, sharing its labels with
//     queryir.GroupKey.Bucket
//   - case_sensitive_like, so that LIKE-based operators behave as they do
//     on PostgreSQL
//
// # Database Configuration
//
//   - WAL mode: concurrent reads while group pages are fetched in parallel
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Row-returning queries always end with the root primary key as a tie
// breaker, so identical plans read identical rows in identical order.
package store
