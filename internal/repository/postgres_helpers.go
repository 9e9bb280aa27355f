package repository

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/aidbook/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// isUUID はidがUUID列と比較できる形式かを返す。
// URLから渡された不正なIDをそのままSQLに渡すと型変換エラー（22P02）になるため、
// 問い合わせ前に「該当なし」として扱う。
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// wrapWriteError はドライバのエラーをラップする。一意制約違反はmodel.ErrConflictとして返す。
func wrapWriteError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w (%s)", msg, model.ErrConflict, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// nullableID は空文字列のIDをNULLとして扱う。
func nullableID(id *string) sql.NullString {
	if id == nil || *id == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *id, Valid: true}
}

// idPointer はsql.NullStringをIDのポインタに変換する。
func idPointer(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// encodeDocument はドキュメントをJSONBに保存する形式に変換する。
func encodeDocument(doc model.Document) ([]byte, error) {
	if doc == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントのエンコードに失敗しました: %w", err)
	}
	return b, nil
}

// decodeDocument はJSONBの値をドキュメントに変換する。
// 数値は整数ならint64、それ以外はfloat64として復元する。
func decodeDocument(raw []byte) (model.Document, error) {
	doc := model.Document{}
	if len(raw) == 0 {
		return doc, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("ドキュメントのデコードに失敗しました: %w", err)
	}

	for k, v := range doc {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			doc[k] = i
		} else if f, err := n.Float64(); err == nil {
			doc[k] = f
		}
	}
	return doc, nil
}

// likeEscaper はILIKEのワイルドカード文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern は部分一致用のILIKEパターンを返す。
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
