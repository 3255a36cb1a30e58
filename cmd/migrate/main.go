package main

import (
	"os"

	"retail-be/internal/config"
	"retail-be/internal/db"
	"retail-be/internal/logger"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	app := &cli.App{
		Name:  "migrate",
		Usage: "apply or roll back the schema in ./migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "./migrations", EnvVars: []string{"MIGRATIONS_DIR"}},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply every pending migration",
				Action: func(c *cli.Context) error {
					m := newMigrator(db.InitDB(cfg), c.String("dir"), logger.L())
					defer m.db.Close()
					_, err := m.Up(c.Context)
					return err
				},
			},
			{
				Name:  "down",
				Usage: "roll back the latest applied migration",
				Action: func(c *cli.Context) error {
					m := newMigrator(db.InitDB(cfg), c.String("dir"), logger.L())
					defer m.db.Close()
					return m.Down(c.Context)
				},
			},
			{
				Name:  "status",
				Usage: "list migrations and whether they are applied",
				Action: func(c *cli.Context) error {
					m := newMigrator(db.InitDB(cfg), c.String("dir"), logger.L())
					defer m.db.Close()
					states, err := m.Status(c.Context)
					if err != nil {
						return err
					}
					for _, s := range states {
						m.log.Info("migration", zap.String("version", s.Version), zap.Bool("applied", s.Applied))
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.L().Fatal("migration failed", zap.Error(err))
	}
}
