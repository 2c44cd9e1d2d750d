// Package database gerencia a conexão SQLite local e as migrations.
//
// O daemon guarda pouco estado durável — marcas de leitura por usuário e o
// cache offline de conversas — mas esse estado precisa sobreviver a restart,
// então vive num arquivo SQLite ao lado do processo.
package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // driver SQLite em Go puro — sem CGO, roda em qualquer plataforma
)

// recoverableErrors, padrões de erro tolerados durante migration.
// Uma migration interrompida no meio, ao rodar de novo, pode esbarrar em
// "duplicate column name" — a coluna já existe, pode seguir em frente.
var recoverableErrors = []string{
	"duplicate column name",
}

// DB embrulha a conexão.
// *sql.DB é o connection pool da stdlib — thread-safe, compartilhável
// entre goroutines sem proteção extra.
type DB struct {
	Conn *sql.DB
}

// New abre (ou cria) o banco SQLite e aplica as migrations pendentes.
//
// dbPath: caminho do arquivo (ex: "./data/carvao.db").
// migrationsFS: fs.FS com os arquivos .sql (embed.FS ou os.DirFS).
func New(dbPath string, migrationsFS fs.FS) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// foreign_keys: no SQLite vem desligado por padrão.
	// journal_mode=WAL: leitura e escrita concorrentes sem bloquear.
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn}

	// O embed.FS chega enraizado um nível acima dos .sql — a diretiva
	// //go:embed preserva o prefixo migrations/ no path. Quando o subtree
	// existe, desce nele; um fs.FS já enraizado nos arquivos passa direto.
	if _, statErr := fs.Stat(migrationsFS, "migrations"); statErr == nil {
		sub, subErr := fs.Sub(migrationsFS, "migrations")
		if subErr != nil {
			return nil, fmt.Errorf("failed to enter migrations subtree: %w", subErr)
		}
		migrationsFS = sub
	}

	if err := db.runMigrations(migrationsFS); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("[database] connected and migrations applied")
	return db, nil
}

// Close fecha a conexão.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// runMigrations aplica os arquivos .sql em ordem alfabética (001_, 002_, ...).
//
// A tabela schema_migrations registra o que já foi aplicado, para que
// comandos não-idempotentes (ALTER TABLE) não rodem duas vezes. Se o banco
// já tem tabelas mas schema_migrations está vazia (instalação antiga),
// todas as migrations existentes são marcadas como aplicadas (bootstrap).
func (db *DB) runMigrations(migrationsFS fs.FS) error {
	if _, err := db.Conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}

	sort.Strings(sqlFiles)

	applied := make(map[string]bool)
	rows, err := db.Conn.Query("SELECT filename FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate migration rows: %w", err)
	}

	// Bootstrap de instalação existente.
	if len(applied) == 0 {
		var tableCount int
		if err := db.Conn.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='conversation_reads'",
		).Scan(&tableCount); err != nil {
			return fmt.Errorf("failed to check existing tables: %w", err)
		}

		if tableCount > 0 {
			for _, file := range sqlFiles {
				if _, err := db.Conn.Exec(
					"INSERT INTO schema_migrations (filename) VALUES (?)", file,
				); err != nil {
					return fmt.Errorf("failed to bootstrap migration %s: %w", file, err)
				}
				applied[file] = true
			}
			log.Printf("[database] bootstrapped %d existing migrations", len(sqlFiles))
			return nil
		}
	}

	for _, file := range sqlFiles {
		if applied[file] {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		// Statement por statement: o Exec do SQLite aceita vários statements,
		// mas cada um é autocommit — para recuperar uma migration pela metade
		// os erros recuperáveis precisam ser pulados individualmente.
		if err := db.execStatements(file, string(content)); err != nil {
			return err
		}

		if _, err := db.Conn.Exec(
			"INSERT INTO schema_migrations (filename) VALUES (?)", file,
		); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}

		log.Printf("[database] migration applied: %s", file)
	}

	return nil
}

// execStatements roda o SQL de uma migration statement a statement,
// tolerando os padrões de recoverableErrors.
func (db *DB) execStatements(filename, content string) error {
	statements := splitStatements(content)

	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := db.Conn.Exec(stmt); err != nil {
			errMsg := err.Error()
			recoverable := false
			for _, pattern := range recoverableErrors {
				if strings.Contains(errMsg, pattern) {
					recoverable = true
					break
				}
			}

			if recoverable {
				log.Printf("[database] %s: statement %d skipped (recoverable: %s)", filename, i+1, errMsg)
				continue
			}

			return fmt.Errorf("failed to execute migration %s (statement %d): %w", filename, i+1, err)
		}
	}

	return nil
}

// splitStatements separa o texto SQL em statements pelo ponto e vírgula,
// ignorando os que estiverem dentro de string literal (aspas simples).
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if ch == '\'' {
			// '' dentro de string é escape de aspas — não fecha a literal
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				current.WriteByte(ch)
				current.WriteByte(sql[i+1])
				i++
				continue
			}
			inString = !inString
		}

		if ch == ';' && !inString {
			s := strings.TrimSpace(current.String())
			if s != "" {
				statements = append(statements, s)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	s := strings.TrimSpace(current.String())
	if s != "" {
		statements = append(statements, s)
	}

	return statements
}
