// Package database — embed das migrations.
//
// //go:embed copia os arquivos .sql para dentro do binário em tempo de
// compilação; o deploy não precisa carregar a pasta migrations junto.
package database

import "embed"

// EmbeddedMigrations contém os .sql de migrations/.
// Uso: fs.Sub(EmbeddedMigrations, "migrations").
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
