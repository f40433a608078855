package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/nhle/tempmail/internal/app"
	"github.com/nhle/tempmail/internal/credential"
	"github.com/nhle/tempmail/internal/i18n"
	"github.com/nhle/tempmail/internal/inbox"
	"github.com/nhle/tempmail/internal/logging"
	"github.com/nhle/tempmail/internal/mailapi"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/store"
)

type flags struct {
	configPath  string
	noArchive   bool
	storeAPIKey bool
	forgetKey   bool
	writeConfig bool
}

func main() {
	fs := pflag.NewFlagSet("tempmail", pflag.ExitOnError)
	f := flags{}
	fs.StringVarP(&f.configPath, "config", "c", model.DefaultConfigPath(), "path to the config file")
	fs.String("base-url", "", "mail service base URL")
	fs.String("auth-mode", "", "token transport: query or bearer")
	fs.Int("interval", 0, "inbox poll interval in seconds")
	fs.String("lang", "", "display language ("+strings.Join(i18n.Languages(), ", ")+")")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.BoolVar(&f.noArchive, "no-archive", false, "disable the local archive")
	fs.BoolVar(&f.storeAPIKey, "store-api-key", false, "read an API key from stdin and save it in the system keyring")
	fs.BoolVar(&f.forgetKey, "forget-api-key", false, "remove the saved API key from the system keyring")
	fs.BoolVar(&f.writeConfig, "write-config", false, "write the effective configuration to --config and exit")
	_ = fs.Parse(os.Args[1:])

	if err := run(fs, f); err != nil {
		fmt.Fprintf(os.Stderr, "tempmail: %v\n", err)
		os.Exit(1)
	}
}

func run(fs *pflag.FlagSet, f flags) error {
	if f.storeAPIKey {
		return storeAPIKey()
	}
	if f.forgetKey {
		if err := credential.Delete(credential.APIKeyName); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "API key removed from the system keyring.")
		return nil
	}

	cfg, err := model.LoadConfig(f.configPath, fs)
	if err != nil {
		return err
	}
	if f.writeConfig {
		if err := model.SaveConfig(f.configPath, cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", f.configPath)
		return nil
	}

	log, logCloser, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	apiKey, err := credential.APIKey()
	if err != nil {
		// The key is optional; a broken keyring must not block startup.
		log.WithError(err).Warn("reading API key from keyring")
	}

	client := mailapi.NewClient(cfg.API.BaseURL, mailapi.Options{
		AuthMode:   cfg.API.AuthMode,
		APIKey:     apiKey,
		Timeout:    cfg.RequestTimeout(),
		MaxRetries: cfg.API.MaxRetries,
		Logger:     log,
	})

	engine := inbox.New(client, inbox.Options{
		PollInterval:   cfg.PollInterval(),
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         log,
	})
	defer engine.Close()

	var archive store.Store
	if !f.noArchive {
		s, err := store.NewSQLiteStore(cfg.Archive.DBPath)
		if err != nil {
			log.WithError(err).Warn("archive unavailable")
		} else {
			defer s.Close()
			archive = s
		}
	}

	dict, err := i18n.Load(cfg.Display.Lang)
	if err != nil {
		return fmt.Errorf("loading dictionary: %w", err)
	}

	log.WithFields(logrus.Fields{
		"base_url":  cfg.API.BaseURL,
		"auth_mode": cfg.API.AuthMode,
		"interval":  cfg.PollInterval().String(),
		"lang":      dict.Lang(),
	}).Info("starting")

	m := app.New(app.Options{
		Engine:    engine,
		Store:     archive,
		Dict:      dict,
		Clipboard: clipboard.WriteAll,
		ExportDir: cfg.Archive.ExportDir,
		Logger:    log,
		About: []string{
			"API " + cfg.API.BaseURL + " (" + cfg.API.AuthMode + ")",
			"Polling every " + cfg.PollInterval().String(),
			"Config " + f.configPath,
		},
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// storeAPIKey saves the first line of stdin as the service API key.
func storeAPIKey() error {
	fmt.Fprint(os.Stderr, "API key: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading API key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return fmt.Errorf("empty API key")
	}
	if err := credential.Set(credential.APIKeyName, key); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "API key saved to the system keyring.")
	return nil
}
