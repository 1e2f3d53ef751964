package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/greport/greport/config"
	"github.com/greport/greport/internal/db"
	"github.com/greport/greport/internal/github"
	"github.com/greport/greport/internal/server"
	"github.com/greport/greport/internal/sync"
)

// Exit codes: 0 success, 1 runtime failure, 2 usage or configuration error.
const (
	exitRuntime = 1
	exitUsage   = 2
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "greport",
		Short:         "Repository analytics: sync GitHub activity and serve reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to greport.yaml")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(serveCmd(), syncCmd(), reposCmd(), validateCmd())

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		if _, ok := err.(*usageError); ok {
			os.Exit(exitUsage)
		}
		os.Exit(exitRuntime)
	}
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// app is the wired process: configuration, warehouse, registry and
// coordinator, shared by every command.
type app struct {
	cfg         *config.Config
	db          *db.DB
	registry    *github.Registry
	coordinator *sync.Coordinator
	log         *logrus.Entry
}

func newApp() (*app, error) {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("app", "greport")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &usageError{err}
	}

	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, err
	}

	orgs := make([]github.OrgCredential, 0, len(cfg.Organizations))
	for _, org := range cfg.Organizations {
		orgs = append(orgs, github.OrgCredential{
			Name: org.Name,
			Credential: github.Credential{
				Token:   org.Token,
				BaseURL: org.BaseURL,
				WebURL:  org.WebURL,
			},
		})
	}
	registry := github.NewRegistry(orgs, github.Credential{
		Token:   cfg.Github.Token,
		BaseURL: cfg.Github.BaseURL,
		WebURL:  cfg.Github.WebURL,
	}, log)

	coordinator := sync.New(database, registry, sync.Options{
		Overlap: time.Duration(cfg.Sync.OverlapHours) * time.Hour,
		Log:     log,
	})

	return &app{
		cfg:         cfg,
		db:          database,
		registry:    registry,
		coordinator: coordinator,
		log:         log,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close warehouse")
	}
}

// signalContext cancels on SIGINT/SIGTERM so syncs stop at the next
// suspension point.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the analytics HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			srv := server.New(a.db, a.registry, a.coordinator, server.Config{
				Sla:       a.cfg.SlaMetricsConfig(),
				StaleDays: a.cfg.Sync.StaleDays,
			}, a.log)

			a.log.WithField("addr", a.cfg.Addr()).Info("serving")
			return srv.Run(a.cfg.Addr())
		},
	}
}

func syncCmd() *cobra.Command {
	var force, projects bool
	cmd := &cobra.Command{
		Use:   "sync [owner/repo...]",
		Short: "Sync tracked repositories, or only the ones named",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			if len(args) == 0 {
				batch, err := a.coordinator.SyncAll(ctx, force)
				if err != nil {
					return err
				}
				for _, result := range batch.Results {
					printResult(result)
				}
				fmt.Printf("%d synced, %d failed\n", batch.Successful, batch.Failed)
			} else {
				for _, arg := range args {
					owner, name, err := github.ParseFullName(arg)
					if err != nil {
						return &usageError{err}
					}
					result, err := a.coordinator.SyncRepository(ctx, owner, name, force)
					if err != nil {
						return err
					}
					printResult(result)
				}
			}

			if projects {
				results, err := a.coordinator.SyncAllOrgProjects(ctx)
				if err != nil {
					return err
				}
				for _, result := range results {
					fmt.Printf("%s: %d projects, %d items\n",
						result.Organization, result.ProjectsSynced, result.ItemsSynced)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore incremental watermarks")
	cmd.Flags().BoolVar(&projects, "projects", false, "also sync organization project boards")
	return cmd
}

func printResult(result *sync.Result) {
	fmt.Printf("%s: %d issues, %d pulls, %d milestones, %d releases, %d events\n",
		result.Repository, result.IssuesSynced, result.PullsSynced,
		result.MilestonesSynced, result.ReleasesSynced, result.EventsSynced)
	for _, warning := range result.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
}

func reposCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List tracked repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			repos, err := a.db.ListRepositories()
			if err != nil {
				return err
			}
			for _, repo := range repos {
				fmt.Printf("%s\tlast synced %s\n", repo.FullName, repo.SyncedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.AddCommand(reposAddCmd(), reposRemoveCmd())
	return cmd
}

func reposAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add owner/repo",
		Short: "Track a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			owner, name, err := github.ParseFullName(args[0])
			if err != nil {
				return &usageError{err}
			}
			if existing, err := a.db.GetRepositoryByFullName(args[0]); err != nil {
				return err
			} else if existing != nil {
				fmt.Printf("%s already tracked\n", existing.FullName)
				return nil
			}
			count, err := a.db.CountRepositories()
			if err != nil {
				return err
			}
			if count >= server.MaxTrackedRepos {
				return &usageError{fmt.Errorf("at most %d repositories can be tracked", server.MaxTrackedRepos)}
			}

			ctx, cancel := signalContext()
			defer cancel()

			client, err := a.registry.ClientFor(owner)
			if err != nil {
				return err
			}
			repo, err := client.GetRepository(ctx, owner, name)
			if err != nil {
				return err
			}
			if a.registry.HasOrg(owner) {
				repo.Org = owner
			}
			if err := a.db.UpsertRepository(repo); err != nil {
				return err
			}
			fmt.Printf("tracking %s\n", repo.FullName)
			return nil
		},
	}
}

func reposRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove owner/repo",
		Short: "Untrack a repository and drop its warehouse rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if _, _, err := github.ParseFullName(args[0]); err != nil {
				return &usageError{err}
			}
			repo, err := a.db.GetRepositoryByFullName(args[0])
			if err != nil {
				return err
			}
			if repo == nil {
				return &usageError{fmt.Errorf("repository %s is not tracked", args[0])}
			}
			if err := a.db.DeleteRepository(repo.ID); err != nil {
				return err
			}
			fmt.Printf("untracked %s\n", repo.FullName)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every configured credential against the host",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			failed := false
			for _, result := range a.registry.Validate(ctx) {
				line := fmt.Sprintf("%s: %s", result.Name, result.Status)
				if result.Viewer != "" {
					line += fmt.Sprintf(" (as %s)", result.Viewer)
				}
				fmt.Println(line)
				if result.Status != "valid" {
					failed = true
				}
			}
			if failed {
				return fmt.Errorf("one or more credentials failed validation")
			}
			return nil
		},
	}
}
