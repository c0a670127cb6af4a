package sizing

import (
	"sync"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/shopspring/decimal"
)

const maxBatchWorkers = 8

type BatchItem struct {
	ID           int64
	Ticker       string
	Action       model.Action
	SizingInput  string
	Position     model.CurrentPosition
	Rounding     model.RoundingConfig
	ActiveWeight *model.ActiveWeightConfig
}

type BatchEntry struct {
	Result NormalizedResult
	Spec   model.SizingSpec
}

type BatchSummary struct {
	Total            int
	Valid            int
	Invalid          int
	Conflicts        int
	BelowLotWarnings int
	TotalNotional    decimal.Decimal
}

type BatchResult struct {
	Entries map[int64]BatchEntry
	Summary BatchSummary
}

// NormalizeBatch runs Normalize independently over every item. Items never
// read each other's state, so the per-item work is spread over a small worker
// pool; each worker writes its own slot of the results slice and the map plus
// summary are assembled after all workers finish. A missing price invalidates
// only the affected item, never the batch.
func NormalizeBatch(
	items []BatchItem,
	prices map[string]model.AssetPrice,
	portfolioValue decimal.Decimal,
	trigger model.ConflictTrigger,
) BatchResult {
	results := make([]BatchEntry, len(items))

	workers := maxBatchWorkers
	if len(items) < workers {
		workers = len(items)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = normalizeItem(items[i], prices, portfolioValue, trigger)
			}
		}()
	}

	for i := range items {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	res := BatchResult{
		Entries: make(map[int64]BatchEntry, len(items)),
		Summary: BatchSummary{Total: len(items)},
	}

	for i, item := range items {
		entry := results[i]
		res.Entries[item.ID] = entry

		if !entry.Result.IsValid {
			res.Summary.Invalid++
			continue
		}

		res.Summary.Valid++
		if entry.Result.DirectionConflict != nil {
			res.Summary.Conflicts++
		}
		if entry.Result.BelowLotWarning {
			res.Summary.BelowLotWarnings++
		}
		res.Summary.TotalNotional = res.Summary.TotalNotional.Add(entry.Result.Computed.NotionalValue)
	}

	return res
}

func normalizeItem(
	item BatchItem,
	prices map[string]model.AssetPrice,
	portfolioValue decimal.Decimal,
	trigger model.ConflictTrigger,
) BatchEntry {
	parse := Parse(item.SizingInput, item.ActiveWeight != nil)

	// re-parse into a spec independently so the raw text persists even when
	// the price lookup below fails
	entry := BatchEntry{}
	if spec, err := ToSpec(parse, item.SizingInput); err == nil {
		entry.Spec = spec
	}

	price, ok := prices[item.Ticker]
	if !ok {
		entry.Result = NormalizedResult{Err: ErrPriceUnavailable}
		return entry
	}

	entry.Result = Normalize(NormalizationContext{
		Parse:          parse,
		Action:         item.Action,
		Position:       item.Position,
		Price:          price,
		PortfolioValue: portfolioValue,
		Rounding:       item.Rounding,
		ActiveWeight:   item.ActiveWeight,
		Trigger:        trigger,
	})

	return entry
}
