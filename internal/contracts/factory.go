package contracts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/felt"
)

const createLockPrefix = "create_market:"

// FactorySnapshot reads the factory's next market identifier.
func (a *Adapter) FactorySnapshot(ctx context.Context) (domain.FactorySnapshot, error) {
	factory, err := a.factory()
	if err != nil {
		return domain.FactorySnapshot{}, err
	}
	out, err := a.call(ctx, factory, "next_market_id")
	if err != nil {
		return domain.FactorySnapshot{}, err
	}
	next, err := a.decoder.Uint(at(out, 0, "0"))
	if err != nil {
		return domain.FactorySnapshot{}, fmt.Errorf("contracts: next_market_id: %w", err)
	}
	return domain.FactorySnapshot{NextMarketID: next}, nil
}

// maxListPrealloc caps the slice preallocated from the on-chain counter.
const maxListPrealloc = 1024

// ListMarkets scans identifiers 0..next-1 and returns every market it can
// read, newest first. An identifier that cannot be read is skipped; only
// provider resolution, the snapshot read and cancellation fail the scan.
func (a *Adapter) ListMarkets(ctx context.Context) ([]domain.MarketSummary, error) {
	factory, err := a.factory()
	if err != nil {
		return nil, err
	}
	snap, err := a.FactorySnapshot(ctx)
	if err != nil {
		return nil, err
	}

	markets := make([]domain.MarketSummary, 0, min(snap.NextMarketID, maxListPrealloc))
	for id := uint64(0); id < snap.NextMarketID; id++ {
		m, ok, err := a.readMarket(ctx, factory, id)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("contracts: list markets: %w", ctxErr)
		}
		if err != nil {
			a.metrics.observeSkip("unreadable")
			a.logger.DebugContext(ctx, "contracts: skipping market",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !ok {
			a.metrics.observeSkip("unallocated")
			continue
		}
		markets = append(markets, m)
	}

	slices.Reverse(markets)
	a.metrics.observeDiscovered(len(markets))
	return markets, nil
}

// readMarket reads one identifier. ok is false when the factory reports the
// zero address for it.
func (a *Adapter) readMarket(ctx context.Context, factory string, id uint64) (domain.MarketSummary, bool, error) {
	idFelt := felt.FromUint(id)

	out, err := a.call(ctx, factory, "get_market", idFelt)
	if err != nil {
		return domain.MarketSummary{}, false, err
	}
	addr := at(out, 0, "0x0")
	if felt.IsZero(addr) {
		return domain.MarketSummary{}, false, nil
	}

	meta, err := a.call(ctx, factory, "get_market_metadata", idFelt)
	if err != nil {
		return domain.MarketSummary{}, false, err
	}
	endTime, err := a.decoder.Time(at(meta, 2, "0"))
	if err != nil {
		return domain.MarketSummary{}, false, err
	}

	var root, nextIndex, resolved []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		root, err = a.call(gctx, addr, "merkle_root")
		return err
	})
	g.Go(func() error {
		var err error
		nextIndex, err = a.call(gctx, addr, "next_index")
		return err
	})
	g.Go(func() error {
		var err error
		resolved, err = a.call(gctx, addr, "is_resolved")
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.MarketSummary{}, false, err
	}

	idx, err := a.decoder.Uint(at(nextIndex, 0, "0"))
	if err != nil {
		return domain.MarketSummary{}, false, err
	}
	isResolved, err := a.decoder.Bool(at(resolved, 0, "0"))
	if err != nil {
		return domain.MarketSummary{}, false, err
	}

	m := domain.MarketSummary{
		ID:           idFelt,
		Address:      addr,
		QuestionHash: at(meta, 0, "0x0"),
		Oracle:       at(meta, 1, "0x0"),
		EndTime:      endTime,
		Status:       domain.MarketStatusLive,
		MerkleRoot:   at(root, 0, "0x0"),
		NextIndex:    idx,
	}
	if isResolved {
		out, err := a.call(ctx, addr, "resolution_outcome")
		if err != nil {
			return domain.MarketSummary{}, false, err
		}
		side, err := a.decoder.Side(at(out, 0, "0"))
		if err != nil {
			return domain.MarketSummary{}, false, err
		}
		m.Status = domain.MarketStatusResolved
		m.ResolvedOutcome = &side
	}
	return m, true, nil
}

// CreateMarket validates the request, predicts the new identifier from the
// pre-call snapshot and submits create_market. The prediction is best-effort
// and the address is reported as pending.
func (a *Adapter) CreateMarket(ctx context.Context, req domain.CreateMarketRequest) (domain.CreateMarketResult, error) {
	factory, err := a.factory()
	if err != nil {
		return domain.CreateMarketResult{}, err
	}
	questionHash, err := felt.FromText(req.QuestionHash)
	if err != nil {
		return domain.CreateMarketResult{}, fmt.Errorf("contracts: question hash: %w", err)
	}
	oracle, err := felt.FromText(req.Oracle)
	if err != nil {
		return domain.CreateMarketResult{}, fmt.Errorf("contracts: oracle: %w", err)
	}
	endTime, err := felt.SecondsFromTime(req.EndTime)
	if err != nil {
		return domain.CreateMarketResult{}, fmt.Errorf("contracts: end time: %w", err)
	}
	if req.EndTime.Unix() < a.now().Unix() {
		return domain.CreateMarketResult{}, fmt.Errorf("contracts: end time: %w: must not be in the past", domain.ErrInvalidArgument)
	}
	if live := a.store.Get(); live == nil || live.Account == nil {
		return domain.CreateMarketResult{}, domain.ErrSessionRequired
	}

	if a.locks != nil {
		unlock, err := a.locks.Acquire(ctx, createLockPrefix+factory, a.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.CreateMarketResult{}, fmt.Errorf("contracts: create_market: another creation is in flight: %w", err)
			}
			return domain.CreateMarketResult{}, fmt.Errorf("contracts: create_market lock: %w", err)
		}
		defer unlock()
	}

	before, err := a.FactorySnapshot(ctx)
	if err != nil {
		return domain.CreateMarketResult{}, err
	}
	txHash, err := a.invoke(ctx, factory, "create_market", []string{questionHash, oracle, endTime})
	if err != nil {
		return domain.CreateMarketResult{}, err
	}

	return domain.CreateMarketResult{
		TxHash:        txHash,
		MarketID:      felt.FromUint(before.NextMarketID),
		MarketAddress: domain.PendingMarketAddress,
	}, nil
}
