package repository

import "database/sql"

// NewPostgresStore はPostgreSQL実装のリポジトリ一式を生成する。
func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		Accounts:   NewPostgresAccountRepo(db),
		Sessions:   NewPostgresSessionRepo(db),
		Providers:  NewPostgresProviderRepo(db),
		Categories: NewPostgresCategoryRepo(db),
		Fields:     NewPostgresFieldDefinitionRepo(db),
		Persons:    NewPostgresPersonRepo(db),
		Services:   NewPostgresHelpServiceRepo(db),
	}
}

// NewMemoryStore はインメモリ実装のリポジトリ一式を生成する。
// 全リポジトリが同じデータを共有し、一意制約と削除ルールはPostgreSQL実装と同じ。
func NewMemoryStore() *Store {
	db := newMemoryDB()
	return &Store{
		Accounts:   &MemoryAccountRepo{db: db},
		Sessions:   &MemorySessionRepo{db: db},
		Providers:  &MemoryProviderRepo{db: db},
		Categories: &MemoryCategoryRepo{db: db},
		Fields:     &MemoryFieldDefinitionRepo{db: db},
		Persons:    &MemoryPersonRepo{db: db},
		Services:   &MemoryHelpServiceRepo{db: db},
	}
}
