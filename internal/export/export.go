// Package export runs the full mirror pipeline: snapshot the live store,
// decode and fingerprint every record, diff against existing artifacts, and
// render what changed.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Napageneral/zedsync/internal/artifact"
	"github.com/Napageneral/zedsync/internal/diff"
	"github.com/Napageneral/zedsync/internal/fingerprint"
	"github.com/Napageneral/zedsync/internal/ident"
	"github.com/Napageneral/zedsync/internal/snapshot"
	"github.com/Napageneral/zedsync/internal/source"
	"github.com/Napageneral/zedsync/internal/thread"
)

// Options configure one export run.
type Options struct {
	DBPath         string
	TargetDir      string
	Tags           []string
	Force          bool
	IncludeContext bool
	Workers        int
	Logger         *logrus.Logger
}

// Stats summarizes a run. Undecodable counts records skipped for corrupt or
// unrecognized payloads (not a failure); Failed counts records whose
// artifact could not be written (the process should exit non-zero).
type Stats struct {
	Total       int           `json:"total"`
	Created     int           `json:"created"`
	Updated     int           `json:"updated"`
	Unchanged   int           `json:"unchanged"`
	Undecodable int           `json:"undecodable"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration_ns"`
}

// decoded is the per-record result of the parallel stage.
type decoded struct {
	conv *thread.Conversation
	fp   fingerprint.Fingerprint
	err  error
}

// Run executes one batch pass. Failures confined to a single record are
// counted and logged, never fatal; only a failed snapshot (or scan of the
// inputs) aborts the run.
func Run(ctx context.Context, opts Options) (Stats, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	var stats Stats

	snap, err := snapshot.Acquire(ctx, opts.DBPath)
	if err != nil {
		return stats, err
	}
	defer snap.Close()

	store, err := source.Open(snap.Path())
	if err != nil {
		return stats, err
	}
	defer store.Close()

	records, err := store.Threads(ctx)
	if err != nil {
		return stats, err
	}
	stats.Total = len(records)
	log.WithField("threads", len(records)).Debug("snapshot read")

	if err := os.MkdirAll(filepath.Join(opts.TargetDir, "assets"), 0o755); err != nil {
		return stats, fmt.Errorf("create assets dir: %w", err)
	}

	registry := ident.NewRegistry()
	priorByKey := make(map[string]artifact.Existing)
	existing, err := artifact.ScanDir(opts.TargetDir)
	if err != nil {
		return stats, err
	}
	for _, ex := range existing {
		registry.Seed(ident.CandidateFromStem(ex.Stem), ex.Header.ID)
		if _, dup := priorByKey[ex.Header.ID]; !dup {
			priorByKey[ex.Header.ID] = ex
		}
	}

	// Decode and fingerprint in parallel. Results land in input order so
	// identifier assignment below stays deterministic across runs.
	results := make([]decoded, len(records))
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			conv, err := thread.Decode(rec.ID, rec.DataType, rec.Data, thread.Options{
				IncludeContext: opts.IncludeContext,
			})
			if err != nil {
				results[i] = decoded{err: err}
				return nil
			}
			results[i] = decoded{conv: conv, fp: fingerprint.New(conv)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	// Identifier assignment needs a single sequentially consistent view of
	// the registry, so classification and rendering run record-by-record.
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		res := results[i]
		if res.err != nil {
			stats.Undecodable++
			log.WithFields(logrus.Fields{
				"thread": shortKey(rec.ID),
				"err":    res.err,
			}).Warn("skipping undecodable thread")
			continue
		}

		resolution := registry.Resolve(rec.ID)
		if resolution.Exhausted {
			log.WithField("thread", rec.ID).Warn("identifier prefixes exhausted, using full key")
		}

		var priorHeader *artifact.Header
		prior, hasPrior := priorByKey[rec.ID]
		if hasPrior {
			priorHeader = prior.Header
		}

		class := diff.Classify(priorHeader, res.fp)
		if class == diff.Unchanged && !opts.Force {
			stats.Unchanged++
			log.WithField("file", prior.Stem+".md").Debug("unchanged")
			continue
		}

		stem := ident.Stem(resolution.Identifier, res.conv.Title)
		if err := writeArtifact(opts, log, res, resolution.Identifier, stem, prior, hasPrior); err != nil {
			stats.Failed++
			log.WithFields(logrus.Fields{
				"thread": shortKey(rec.ID),
				"err":    err,
			}).Error("failed to write artifact")
			continue
		}

		if class == diff.New {
			stats.Created++
			log.WithField("file", stem+".md").Debug("created")
		} else {
			stats.Updated++
			log.WithField("file", stem+".md").Debug("updated")
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// writeArtifact renders and places one artifact plus its assets. When the
// slug changed, the artifact lands under its new name first and the stale
// name is removed afterwards, so the record is never missing from disk.
func writeArtifact(opts Options, log *logrus.Logger, res decoded, identifier, stem string, prior artifact.Existing, hasPrior bool) error {
	body, assets, err := artifact.Render(res.conv, identifier, res.fp, opts.Tags)
	if err != nil {
		return err
	}

	path := filepath.Join(opts.TargetDir, stem+".md")
	if err := artifact.WriteFile(path, body); err != nil {
		return err
	}

	if hasPrior && prior.Path != path {
		if err := os.Remove(prior.Path); err != nil {
			log.WithFields(logrus.Fields{"old": prior.Path, "err": err}).Warn("could not remove renamed artifact")
		}
	}

	for _, a := range assets {
		if err := artifact.WriteFile(filepath.Join(opts.TargetDir, "assets", a.Name), a.Data); err != nil {
			return err
		}
	}
	return nil
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
