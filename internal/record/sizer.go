package record

// BytesSizer weighs a record by its payload length, with a floor of one so
// empty records still count against the queue limit.
type BytesSizer struct{}

func (BytesSizer) Size(r Record) int64 {
	if n := int64(len(r.Payload)); n > 0 {
		return n
	}
	return 1
}

// EncodedSizer weighs a record by its full encoded size.
type EncodedSizer struct{}

func (EncodedSizer) Size(r Record) int64 {
	return int64(r.EncodedSize())
}
