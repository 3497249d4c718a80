// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dagchaind/dagchaind/config"
	"github.com/dagchaind/dagchaind/consensus"
	"github.com/dagchaind/dagchaind/execution"
	"github.com/dagchaind/dagchaind/logger"
	"github.com/dagchaind/dagchaind/logs"
	"github.com/dagchaind/dagchaind/node"
	"github.com/dagchaind/dagchaind/primitives"
	"github.com/dagchaind/dagchaind/storage/leveldb"
	"github.com/dagchaind/dagchaind/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.NODE)
var spawn = panics.GoroutineWrapperFunc(log)

// blockProductionIntervalSecs bounds how often the local proposer checks
// the mempool and, if it holds transactions, builds and ingests a new
// block -- the account-chain, no-PoW equivalent of kaspaminer's polling
// loop against NewBlockTemplate.
const blockProductionIntervalSecs = 2

// dagchaind wraps the services this process runs, mirroring kaspad.go's
// wrapper-struct/start/stop lifecycle.
type dagchaind struct {
	cfg       *config.Config
	db        *leveldb.DB
	consensus *consensus.Consensus
	node      *node.Node

	proposerPriv ed25519.PrivateKey
	proposerPub  [32]byte

	quit chan struct{}

	started, shutdown int32
}

// start launches block production. Unlike the teacher's P2P/RPC services,
// this core exposes node.Node as a library surface only (per spec.md §1's
// scoping of transport out), so "starting" just means running the local
// block-production loop.
func (d *dagchaind) start() {
	if atomic.AddInt32(&d.started, 1) != 1 {
		return
	}
	log.Info("starting dagchaind")
	spawn(d.runBlockProductionLoop)
}

// stop closes the consensus engine's underlying store. Safe to call more
// than once.
func (d *dagchaind) stop() error {
	if atomic.AddInt32(&d.shutdown, 1) != 1 {
		log.Info("dagchaind is already in the process of shutting down")
		return nil
	}
	log.Warn("dagchaind shutting down")
	close(d.quit)
	return d.db.Close()
}

func (d *dagchaind) runBlockProductionLoop() {
	ticker := time.NewTicker(blockProductionIntervalSecs * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.quit:
			return
		case <-ticker.C:
			if len(d.node.GetMempoolSnapshot()) == 0 {
				continue
			}
			if err := d.produceBlock(); err != nil {
				log.Errorf("block production: %+v", err)
			}
		}
	}
}

func (d *dagchaind) produceBlock() error {
	sign := func(digest primitives.Hash) (primitives.Signature, [32]byte, error) {
		return primitives.SignEd25519(d.proposerPriv, digest), d.proposerPub, nil
	}
	now := uint64(time.Now().Unix())
	result, err := d.consensus.BuildBlock(now, d.proposerPub, [32]byte{}, sign)
	if err != nil {
		return err
	}
	if err := d.consensus.IngestBlock(context.Background(), result.Block, now); err != nil {
		return err
	}
	log.Infof("produced block %s at height %d with %d transactions", result.Block.Hash(), result.Block.Height, len(result.Block.Transactions))
	return nil
}

// newDagchaind opens the persistent store, wires the consensus facade and
// node API from cfg, and derives the local proposer identity. Grounded on
// kaspad.go's newKaspad composition function.
func newDagchaind(cfg *config.Config) (*dagchaind, error) {
	db, err := leveldb.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening data directory %s: %w", cfg.DataDir, err)
	}

	consensusCfg, err := cfg.ConsensusConfig()
	if err != nil {
		db.Close()
		return nil, err
	}

	c, err := consensus.New(consensusCfg, db, execution.NoOpInterpreter{}, consensusLog())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing consensus: %w", err)
	}

	priv, pub := localProposerIdentity()

	return &dagchaind{
		cfg:          cfg,
		db:           db,
		consensus:    c,
		node:         node.New(c),
		proposerPriv: priv,
		proposerPub:  pub,
		quit:         make(chan struct{}),
	}, nil
}

func consensusLog() logs.Logger {
	l, _ := logger.Get(logger.SubsystemTags.NODE)
	return l
}

// localProposerIdentity derives this process's signing identity from a
// fixed seed. Validator-set membership and stake-weighted leader election
// are explicitly out of scope (spec.md's "Proof-of-stake validator
// economics" non-goal): every dagchaind instance in this exercise runs as
// its own single local proposer, matching how cmd/kaspaminer runs as a
// standalone solo miner against a single kaspad instance.
func localProposerIdentity() (ed25519.PrivateKey, [32]byte) {
	seed := make([]byte, ed25519.SeedSize)
	copy(seed, []byte("dagchaind-local-proposer-seed"))
	priv := ed25519.NewKeyFromSeed(seed)
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return priv, pub
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return 1
	}

	if err := logger.InitLogRotators(cfg.LogFile(), cfg.ErrLogFile()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize loggers: %s\n", err)
		return 1
	}
	logger.SetLogLevels(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		log.Errorf("failed to create data directory: %+v", err)
		return 1
	}

	d, err := newDagchaind(cfg)
	if err != nil {
		log.Errorf("%+v", err)
		return 1
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	d.start()
	<-interrupt
	if err := d.stop(); err != nil {
		log.Errorf("error during shutdown: %+v", err)
		return 1
	}
	return 0
}
