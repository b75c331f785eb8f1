package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PoolConfig はコネクションプールの設定。0以下の値はdatabase/sqlの既定値のままにする。
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// poolHeadroom は通知の並列送信以外（ロングポーリングの更新処理、HTTP）に残す接続数。
const poolHeadroom = 5

// PoolFor は通知の並列送信数fanOutに合わせたプール設定を返す。
// 最大接続数はfanOut+5、アイドル接続はその半分（最低2）、接続の寿命は30分。
func PoolFor(fanOut int) PoolConfig {
	if fanOut < 1 {
		fanOut = 1
	}
	open := fanOut + poolHeadroom
	return PoolConfig{
		MaxOpenConns:    open,
		MaxIdleConns:    max(open/2, 2),
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open はuser_profiles/user_settingsを保持するPostgreSQLへの接続プールを開き、poolを適用する。
// sql.Openは接続を試行しないため、疎通確認は呼び出し側でPingContextを使うこと。
func Open(databaseURL string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	return db, nil
}
