// Package engine runs compiled query plans against an executor and shapes
// the response.
//
// The engine is the collaborator around the compiler: it asks an Executor
// for rows and counts, feeds the counts into the pagination planner, and
// assembles flat joined rows into nested records.
//
// EXECUTION FLOW:
//
// Ungrouped plans:
// 1. Executor.Fetch reads the plan's window
// 2. Rows are folded into one record per root primary key
// 3. When pagination is requested, Executor.Count supplies the total
//
// Grouped plans:
// 1. Executor.GroupCounts lists every group key with its total, ascending
// 2. Each group's eligible count is min(limit, max(total-offset, 0))
// 3. paginate.Allocate admits groups in key order until the running total
// reaches the plan's MaxTotal; the group at the boundary may be partial
// 4. Admitted groups are fetched concurrently, one query per group, and
// reported in key order
//
// The compiler and the engine share no mutable state, so one Engine may
// serve concurrent requests.
package engine
