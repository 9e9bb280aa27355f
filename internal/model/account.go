package model

import "time"

// Account はシステムにログインするアカウントを表す。
// 支援提供者（Provider）とは1:1で紐づくが、Providerを持たないアカウントも存在しうる。
type Account struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はアカウントのログインセッションを表す。
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}
