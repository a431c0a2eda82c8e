package common

import "fmt"

// KeyType is the key of the records handled by the command line tools.
type KeyType int64

// ValueType is an opaque record payload.
type ValueType []byte

// Record is the leaf value stored by the tools: an int64 key plus payload.
type Record struct {
	Key   KeyType
	Value ValueType
}

// RecordKey extracts the key of a record.
func RecordKey(r Record) int64 {
	return int64(r.Key)
}

// String formats the record for debug output.
func (r *Record) String() string {
	return fmt.Sprintf("Record{Key: %d, ValLen: %d}", r.Key, len(r.Value))
}
