package main

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

const (
	defaultAccounts = 8
	defaultBatches  = 3
	defaultBatchLen = 12
	defaultWorkers  = 1
)

type config struct {
	Accounts int           `long:"accounts" description:"Number of accounts funded from the faucet"`
	Batches  int           `long:"batches" description:"Number of batches to process"`
	BatchLen int           `long:"batchlen" description:"Number of transfers generated for each batch, before conflicts and chains"`
	Seed     int64         `long:"seed" description:"Seed of the random generator. 0 means current time"`
	Workers  int           `long:"workers" description:"Number of search workers"`
	MaxNodes int64         `long:"maxnodes" description:"Limit of search nodes per batch. 0 means no limit"`
	Deadline time.Duration `long:"deadline" description:"Time limit of the search per batch, for example 200ms. 0 means no limit"`
	Debug    bool          `long:"debug" description:"Enable debug logging"`
}

func loadConfig() (*config, error) {
	cfg := &config{
		Accounts: defaultAccounts,
		Batches:  defaultBatches,
		BatchLen: defaultBatchLen,
		Workers:  defaultWorkers,
	}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	if cfg.Accounts < 2 {
		return nil, fmt.Errorf("at least 2 accounts are needed, got %d", cfg.Accounts)
	}
	if cfg.Batches < 1 || cfg.BatchLen < 1 {
		return nil, fmt.Errorf("--batches and --batchlen must be positive")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg, nil
}
