package config

// EventStore はイベントストアサービスの設定。
type EventStore struct {
	Common
	// DBPath はSQLiteデータベースのパス。
	DBPath string
}

// LoadEventStore はイベントストアサービスの設定を読み込む。
func LoadEventStore(lookup Lookup) (*EventStore, error) {
	return &EventStore{
		Common: loadCommon(lookup, "8088"),
		DBPath: getOr(lookup, "EVENTSTORE_DB_PATH", "/data/eventstore.db"),
	}, nil
}
