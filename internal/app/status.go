package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"torn-alert-watcher/internal/market"
	"torn-alert-watcher/internal/state"
)

// Status prints the persisted per-subject alert state and watched items.
func (a *App) Status(ctx context.Context, opts StatusOptions) error {
	docs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()

	store := state.NewStore(docs, a.Config.Storage.Debounce, a.Logger)
	store.Load(ctx)

	states := store.States()
	ids := make([]string, 0, len(states))
	for id := range states {
		if opts.SubjectID != "" && id != opts.SubjectID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if len(ids) == 0 {
		fmt.Fprintln(os.Stdout, "no subject state recorded")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Subject\tAlert\tLatched\tLast fired (UTC)")
		for _, id := range ids {
			st := states[id]
			keys := make([]string, 0, len(st.LastAlert))
			for key := range st.LastAlert {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(writer, "%s\t%s\t%t\t%s\n",
					id, key, st.Flags[key],
					time.UnixMilli(st.LastAlert[key]).UTC().Format(time.RFC3339))
			}
		}
		writer.Flush()
	}

	monitor := market.New(market.Options{}, docs, nil, nil, nil, a.Config.Storage.Debounce, a.Logger)
	monitor.Load(ctx)

	items := monitor.Items()
	if len(items) == 0 {
		return nil
	}

	fmt.Fprintln(os.Stdout)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Subject\tCountry\tItem\tState\tLast stock\tPurchased")
	for _, it := range items {
		if opts.SubjectID != "" && it.SubjectID != opts.SubjectID {
			continue
		}
		fmt.Fprintf(writer, "%s\t%s\t%s (%d)\t%s\t%d\t%t\n",
			it.SubjectID, it.Country, it.ItemName, it.ItemID, it.State, it.LastStock, it.HasPurchased)
	}
	writer.Flush()
	return nil
}
