package config

const (
	// TopicIndexSync carries folder sync requests to the single indexing consumer.
	TopicIndexSync = "index.sync"

	// ChannelIndexer is the only channel consuming TopicIndexSync.
	ChannelIndexer = "indexer"
)
