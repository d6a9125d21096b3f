package main

import (
	"github.com/openchami/node-waker/internal/config"
	"github.com/openchami/node-waker/internal/storage"
	"github.com/openchami/node-waker/internal/storage/file"
	"github.com/openchami/node-waker/internal/storage/remote"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// newStorage picks the client storage backend. The choice is made once at
// startup; cfg has been validated to name exactly one backend.
func newStorage(cfg config.Storage) (storage.ClientStorage, error) {
	if !cfg.Remote() {
		log.Info().Str("path", cfg.File).Msg("Using client file")
		return file.NewStorage(cfg.File), nil
	}

	s, err := remote.NewStorage(cfg.URL,
		remote.WithPutURL(cfg.PutURL),
		remote.WithToken(cfg.Token),
		remote.WithTimeout(cfg.Timeout),
		remote.WithRetries(cfg.Retries),
	)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", cfg.URL).Bool("writable", cfg.PutURL != "").Msg("Using remote client list")
	return s, nil
}

func addStorageFlags(flags *pflag.FlagSet) {
	flags.String("file", "", "JSON file holding the clients")
	flags.String("url", "", "URL of a remote JSON document holding the clients")
	flags.String("put-url", "", "URL the remote client document is written to")
	flags.String("token", "", "bearer token for the remote client document")
	flags.Duration("timeout", remote.DefaultTimeout, "timeout of remote storage requests")
	flags.Int("retries", remote.DefaultRetries, "retries of failed remote storage requests")
}
