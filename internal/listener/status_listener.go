/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package listener

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"streamvault-go/internal/address"
	"streamvault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ReadBuffer       = "buffer"
	ReadYieldEnabled = "yieldEnabled"
	ReadClaimable    = "claimable"
)

// StatusReader is the read side of the vault contract polled on every tick
type StatusReader interface {
	Buffer(ctx context.Context, vault common.Address) (*big.Int, error)
	YieldEnabled(ctx context.Context, vault common.Address) (bool, error)
	Claimable(ctx context.Context, vault common.Address, streamId *big.Int) (*big.Int, error)
}

// StatusListener polls a vault's buffer, yield flag and, when a stream id is
// set, the stream's claimable amount. Ticks are independent: a slow tick never
// delays the next one, and a reading only replaces the latest one when it was
// started later.
type StatusListener struct {
	reader      StatusReader
	interval    time.Duration
	tickTimeout time.Duration

	mu          sync.Mutex
	scheduler   *cron.Cron
	runCtx      context.Context
	cancel      context.CancelFunc
	vault       string
	streamId    *big.Int
	seq         uint64
	latest      models.StatusReading
	hasLatest   bool
	subscribers []func(models.StatusReading)
	running     sync.WaitGroup
}

func NewStatusListener(reader StatusReader, cfg models.StatusConfig) *StatusListener {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	interval = wholeSeconds(interval)
	tickTimeout := cfg.TickTimeout
	if tickTimeout <= 0 {
		tickTimeout = interval
	}

	return &StatusListener{
		reader:      reader,
		interval:    interval,
		tickTimeout: tickTimeout,
	}
}

// wholeSeconds rounds d up to the cron scheduler's one second resolution, so
// 1500ms polls every 2s rather than every 1s.
func wholeSeconds(d time.Duration) time.Duration {
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d
}

// Subscribe registers fn for every published reading
func (l *StatusListener) Subscribe(fn func(models.StatusReading)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// Latest returns the most recent published reading
func (l *StatusListener) Latest() (models.StatusReading, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, l.hasLatest
}

func (l *StatusListener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scheduler != nil
}

// SetVault points the listener at vault. A valid address (re)starts polling;
// anything else stops it.
func (l *StatusListener) SetVault(vault string) {
	vault = strings.TrimSpace(vault)

	l.mu.Lock()
	if l.scheduler != nil && strings.EqualFold(l.vault, vault) {
		l.mu.Unlock()
		return
	}
	l.vault = vault
	valid := address.IsEVMAddress(vault)
	l.mu.Unlock()

	l.Stop()
	if !valid {
		zap.L().Info("Status polling disabled", zap.String("vault", vault))
		return
	}
	l.start()
}

// SetStreamId selects the stream whose claimable amount is polled. An empty
// or non-positive id disables the claimable read.
func (l *StatusListener) SetStreamId(id string) {
	var parsed *big.Int
	if v, ok := new(big.Int).SetString(strings.TrimSpace(id), 10); ok && v.Sign() > 0 {
		parsed = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.streamId = parsed
}

func (l *StatusListener) start() {
	l.mu.Lock()
	if l.scheduler != nil {
		l.mu.Unlock()
		return
	}
	l.runCtx, l.cancel = context.WithCancel(context.Background())
	l.scheduler = cron.New()
	l.scheduler.Schedule(cron.Every(l.interval), cron.FuncJob(l.tick))
	l.scheduler.Start()
	vault := l.vault
	l.mu.Unlock()

	zap.L().Info("Status polling started",
		zap.String("vault", vault),
		zap.Duration("interval", l.interval))

	go l.tick()
}

// Stop halts polling and waits for running ticks to return
func (l *StatusListener) Stop() {
	l.mu.Lock()
	scheduler, cancel := l.scheduler, l.cancel
	l.scheduler, l.cancel, l.runCtx = nil, nil, nil
	l.mu.Unlock()

	if scheduler == nil {
		return
	}
	cancel()
	<-scheduler.Stop().Done()
	l.running.Wait()
	zap.L().Info("Status polling stopped")
}

func (l *StatusListener) tick() {
	l.mu.Lock()
	if l.runCtx == nil {
		l.mu.Unlock()
		return
	}
	l.seq++
	seq := l.seq
	vault := l.vault
	runCtx := l.runCtx
	var streamId *big.Int
	if l.streamId != nil {
		streamId = new(big.Int).Set(l.streamId)
	}
	l.running.Add(1)
	l.mu.Unlock()
	defer l.running.Done()

	ctx, cancel := context.WithTimeout(runCtx, l.tickTimeout)
	defer cancel()

	reading := l.read(ctx, seq, vault, streamId)
	if runCtx.Err() != nil {
		return
	}
	l.publish(reading)
}

func (l *StatusListener) read(ctx context.Context, seq uint64, vault string, streamId *big.Int) models.StatusReading {
	reading := models.StatusReading{
		Seq:    seq,
		At:     time.Now().UTC(),
		Vault:  vault,
		Errors: make(map[string]string),
	}
	addr := common.HexToAddress(vault)

	var mu sync.Mutex
	record := func(name string, err error) error {
		mu.Lock()
		defer mu.Unlock()
		reading.Errors[name] = err.Error()
		return fmt.Errorf("%s: %w", name, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		v, err := l.reader.Buffer(ctx, addr)
		if err != nil {
			return record(ReadBuffer, err)
		}
		mu.Lock()
		reading.Buffer = v
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		v, err := l.reader.YieldEnabled(ctx, addr)
		if err != nil {
			return record(ReadYieldEnabled, err)
		}
		mu.Lock()
		reading.YieldEnabled = &v
		mu.Unlock()
		return nil
	})
	if streamId != nil {
		reading.StreamId = streamId.String()
		g.Go(func() error {
			v, err := l.reader.Claimable(ctx, addr, streamId)
			if err != nil {
				return record(ReadClaimable, err)
			}
			mu.Lock()
			reading.Claimable = v
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zap.L().Debug("Status tick had read errors",
			zap.Uint64("seq", seq),
			zap.String("vault", vault),
			zap.Int("errors", len(reading.Errors)),
			zap.Error(err))
	}
	return reading
}

// publish stores reading as the latest unless a newer one already landed or
// the vault has changed since the tick started.
func (l *StatusListener) publish(reading models.StatusReading) bool {
	l.mu.Lock()
	if !strings.EqualFold(reading.Vault, l.vault) || (l.hasLatest && reading.Seq <= l.latest.Seq) {
		l.mu.Unlock()
		zap.L().Debug("Dropping superseded status reading", zap.Uint64("seq", reading.Seq))
		return false
	}
	l.latest = reading
	l.hasLatest = true
	subscribers := make([]func(models.StatusReading), len(l.subscribers))
	copy(subscribers, l.subscribers)
	l.mu.Unlock()

	for _, fn := range subscribers {
		fn(reading)
	}
	return true
}
