package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"torn-alert-watcher/internal/directory"
	"torn-alert-watcher/internal/market"
	"torn-alert-watcher/internal/state"
)

// ListSubjects prints the registered subjects.
func (a *App) ListSubjects(ctx context.Context) error {
	docs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()

	dir, err := a.openDirectory(ctx, docs)
	if err != nil {
		return err
	}

	subjects, err := dir.ListSubjects(ctx)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		fmt.Fprintln(os.Stdout, "no subjects registered")
		return nil
	}

	ids := make([]string, 0, len(subjects))
	for id := range subjects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tName\tCredential")
	for _, id := range ids {
		subject := subjects[id]
		fmt.Fprintf(writer, "%s\t%s\t%s\n", subject.ID, subject.Name, maskCredential(subject.Credential))
	}
	writer.Flush()
	return nil
}

// RegisterSubject adds a subject to the directory.
func (a *App) RegisterSubject(ctx context.Context, id, name, credential string) error {
	docs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()

	dir, err := a.openDirectory(ctx, docs)
	if err != nil {
		return err
	}
	return dir.Register(ctx, directory.Subject{ID: id, Name: name, Credential: credential})
}

// DeregisterSubject removes a subject along with its alert state and
// watched items.
func (a *App) DeregisterSubject(ctx context.Context, id string) error {
	docs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()

	dir, err := a.openDirectory(ctx, docs)
	if err != nil {
		return err
	}
	if err := dir.Deregister(ctx, id); err != nil {
		return err
	}

	store := state.NewStore(docs, a.Config.Storage.Debounce, a.Logger)
	store.Load(ctx)
	store.Remove(id)
	if err := store.Flush(ctx); err != nil {
		return err
	}

	monitor := market.New(market.Options{}, docs, nil, nil, nil, a.Config.Storage.Debounce, a.Logger)
	monitor.Load(ctx)
	monitor.RemoveSubject(id)
	return monitor.Flush(ctx)
}

// AddWatch registers a watched item for restock monitoring.
func (a *App) AddWatch(ctx context.Context, subjectID, country string, itemID int64, itemName string) error {
	docs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()

	monitor := market.New(market.Options{}, docs, nil, nil, nil, a.Config.Storage.Debounce, a.Logger)
	monitor.Load(ctx)
	return monitor.Watch(ctx, subjectID, country, itemID, itemName)
}

// RemoveWatch deletes a watched item.
func (a *App) RemoveWatch(ctx context.Context, subjectID, country string, itemID int64) error {
	docs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()

	monitor := market.New(market.Options{}, docs, nil, nil, nil, a.Config.Storage.Debounce, a.Logger)
	monitor.Load(ctx)
	return monitor.Unwatch(ctx, subjectID, country, itemID)
}

func maskCredential(credential string) string {
	if len(credential) <= 4 {
		return "****"
	}
	return credential[:4] + "************"
}
