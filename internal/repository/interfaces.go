// Package repository はデータ永続化のインターフェースと、PostgreSQL・インメモリの実装を提供する。
package repository

import (
	"context"
	"iter"

	"github.com/hitoshi/aidbook/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByUsername はユーザー名でアカウントを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Account, error)

	// Create は支援提供者を伴わないアカウントを作成する。
	// ユーザー名が重複している場合はmodel.ErrConflictをラップしたエラーを返す。
	Create(ctx context.Context, account *model.Account) error

	// CreateWithProvider はアカウントと支援提供者（担当支援種別を含む）を同一トランザクションで作成する。
	// ユーザー名が重複している場合はmodel.ErrConflictをラップしたエラーを返す。
	CreateWithProvider(ctx context.Context, account *model.Account, provider *model.Provider) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByAccountID は指定アカウントの全セッションを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProviderRepository は支援提供者データの永続化インターフェース。
type ProviderRepository interface {
	// FindByID は指定IDの提供者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Provider, error)

	// FindByAccountID はアカウントIDで提供者を検索する。提供者として登録されていない場合はnilを返す。
	FindByAccountID(ctx context.Context, accountID string) (*model.Provider, error)

	// Count は提供者数を返す。
	Count(ctx context.Context) (int, error)
}

// CategoryRepository は支援種別データの永続化インターフェース。
type CategoryRepository interface {
	// List は全支援種別を表示順（同順位は名前順）で返す。
	List(ctx context.Context) ([]*model.Category, error)

	// FindByID は指定IDの支援種別を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Category, error)

	// FindByName は名前で支援種別を検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Category, error)

	// Create は支援種別を作成する。名前が重複している場合はmodel.ErrConflictをラップしたエラーを返す。
	Create(ctx context.Context, category *model.Category) error

	// Count は支援種別数を返す。
	Count(ctx context.Context) (int, error)
}

// FieldDefinitionRepository はフィールド定義の永続化インターフェース。
type FieldDefinitionRepository interface {
	// ListBaseFields は基本フィールドを表示順で返す。
	ListBaseFields(ctx context.Context) ([]model.FieldDefinition, error)

	// ListCategoryFields は指定支援種別の追加フィールドを表示順で返す。
	ListCategoryFields(ctx context.Context, categoryID string) ([]model.FieldDefinition, error)

	// CreateBaseField は基本フィールドを作成する。
	// field_keyが重複している場合はmodel.ErrConflictをラップしたエラーを返す。
	CreateBaseField(ctx context.Context, def *model.FieldDefinition) error

	// CreateCategoryField は追加フィールドを作成する。
	// 同じ支援種別内でfield_keyが重複している場合はmodel.ErrConflictをラップしたエラーを返す。
	CreateCategoryField(ctx context.Context, def *model.FieldDefinition) error
}

// PersonRepository は人物データの永続化インターフェース。
// base_dataはスキーマを持たないドキュメントとして保存し、検証は行わない。
type PersonRepository interface {
	// Create は人物を作成する。
	Create(ctx context.Context, person *model.Person) error

	// FindByID は指定IDの人物を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Person, error)

	// SaveBaseData はbase_dataをドキュメント全体で置き換える（部分マージは行わない）。
	SaveBaseData(ctx context.Context, id string, data model.Document) error

	// Search は条件に一致する人物を作成日時の降順で返す。
	// 1人の人物は条件に複数の支援記録が一致しても1回だけ返される。
	// 結果は走査に合わせて逐次取得される。
	Search(ctx context.Context, q model.PersonQuery) iter.Seq2[*model.Person, error]

	// Count は人物数を返す。
	Count(ctx context.Context) (int, error)

	// CountByCreator は指定提供者が登録した人物数を返す。
	CountByCreator(ctx context.Context, providerID string) (int, error)

	// ListRecentByCreator は指定提供者が登録した人物を新しい順にlimit件返す。
	ListRecentByCreator(ctx context.Context, providerID string, limit int) ([]*model.Person, error)
}

// HelpServiceRepository は支援記録の永続化インターフェース。
type HelpServiceRepository interface {
	// Create は支援記録を作成する。
	// 同じ人物・支援種別の組み合わせが存在する場合はmodel.ErrConflictをラップしたエラーを返す。
	Create(ctx context.Context, service *model.HelpService) error

	// FindByID は指定IDの支援記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.HelpService, error)

	// FindByPersonAndCategory は人物と支援種別で支援記録を検索する。見つからない場合はnilを返す。
	FindByPersonAndCategory(ctx context.Context, personID, categoryID string) (*model.HelpService, error)

	// ListByPerson は人物の支援記録を作成日時の昇順で返す。
	ListByPerson(ctx context.Context, personID string) ([]*model.HelpService, error)

	// Update は状態・メモ・custom_dataを更新する。支援種別は変更しない。
	Update(ctx context.Context, service *model.HelpService) error

	// CountByCreator は指定提供者が登録した支援記録数を返す。
	CountByCreator(ctx context.Context, providerID string) (int, error)

	// CountByCreatorPerCategory は指定提供者が登録した支援記録数を支援種別IDごとに返す。
	CountByCreatorPerCategory(ctx context.Context, providerID string) (map[string]int, error)
}

// Store はアプリケーションが使用する全リポジトリの集合。
type Store struct {
	Accounts   AccountRepository
	Sessions   SessionRepository
	Providers  ProviderRepository
	Categories CategoryRepository
	Fields     FieldDefinitionRepository
	Persons    PersonRepository
	Services   HelpServiceRepository
}
