package streamer

// streamShard identifies one logical stream within the file.
type streamShard struct {
	key   string
	shard uint64
}

// Position identifies where in the file a stream currently stands: the last
// sequence number observed for the (stream key, shard) pair and the file
// offset of the record that established it.
type Position struct {
	StreamKey string
	ShardID   uint64
	Sequence  uint64
	Offset    int64
}
