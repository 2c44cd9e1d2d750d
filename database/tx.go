// Package database — gerenciamento de transações.
//
// WithTx roda várias operações como uma unidade atômica. O caso de uso aqui
// é a troca integral do cache de conversas: apagar as linhas do usuário e
// inserir o snapshot novo precisa acontecer junto, senão um crash no meio
// deixa o cache pela metade.
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TxQuerier, interface satisfeita tanto por *sql.DB quanto por *sql.Tx.
//
// Os repositories recebem TxQuerier em vez de *sql.DB: no fluxo normal
// passa-se a conexão, dentro de WithTx passa-se a transação. A stdlib não
// define essa interface — definimos nós (duck typing do Go resolve).
type TxQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx executa fn dentro de uma transação SQL.
//
// 1. BEGIN
// 2. fn(tx)
// 3. fn devolve nil → COMMIT
// 4. fn devolve erro → ROLLBACK
// 5. fn entra em panic → ROLLBACK + re-panic
//
// O recover é necessário para não deixar a transação aberta segurando
// lock do banco quando fn estoura.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
			return
		}

		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return
}
