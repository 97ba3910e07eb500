package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAnyScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Value
	}{
		{"nil", nil, Null{}},
		{"string", "hello", String("hello")},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int64", int64(-7), Int(-7)},
		{"uint8", uint8(3), Int(3)},
		{"float64", 1.5, Float(1.5)},
		{"json integer", json.Number("18"), Int(18)},
		{"json fraction", json.Number("18.5"), Float(18.5)},
		{"json exponent", json.Number("1e3"), Float(1000)},
		{"already a value", String("x"), String("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFromAnyNested(t *testing.T) {
	got, err := FromAny(map[string]any{
		"list": []any{"a", json.Number("1"), nil},
		"obj":  map[string]any{"ok": false},
	})
	require.NoError(t, err)

	assert.Equal(t, Object{
		"list": Array{String("a"), Int(1), Null{}},
		"obj":  Object{"ok": Bool(false)},
	}, got)
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	_, err = FromAny([]any{make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[0]")
}

func TestFromAnyUint64Overflow(t *testing.T) {
	_, err := FromAny(uint64(1 << 63))
	require.Error(t, err)
}

func TestNativeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC)

	assert.Nil(t, Native(Null{}))
	assert.Nil(t, Native(nil))
	assert.Equal(t, "a", Native(String("a")))
	assert.Equal(t, int64(3), Native(Int(3)))
	assert.Equal(t, 2.5, Native(Float(2.5)))
	assert.Equal(t, true, Native(Bool(true)))
	assert.Equal(t, ts, Native(Time{T: ts, Kind: TimeZoned}))
	assert.Equal(t, []any{"a", int64(1)}, Native(Array{String("a"), Int(1)}))
	assert.Equal(t, map[string]any{"k": nil}, Native(Object{"k": Null{}}))
}

func TestDecodeKeepsIntegers(t *testing.T) {
	v, err := Decode([]byte(`{"limit": 10, "ratio": 0.5}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, Int(10), obj["limit"])
	assert.Equal(t, Float(0.5), obj["ratio"])
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`{} {}`))
	require.Error(t, err)
}

func TestTimeString(t *testing.T) {
	ts := time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-02-01", Time{T: ts, Kind: TimeDate}.String())
	assert.Equal(t, "2024-02-01T01:00:00", Time{T: ts, Kind: TimeNaive}.String())
	assert.Equal(t, "2024-02-01T01:00:00Z", Time{T: ts, Kind: TimeZoned}.String())

	data, err := json.Marshal(Time{T: ts, Kind: TimeDate})
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-01"`, string(data))
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+E000 sorts before U+1F600 in UTF-8 but after it in UTF-16.
	obj := Object{"\uE000": Int(1), "\U0001F600": Int(2), "a": Int(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "\uE000"}, obj.SortedKeys())
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(Null{}))
	assert.False(t, IsNull(String("")))
}
