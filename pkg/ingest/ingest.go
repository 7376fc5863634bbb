// Package ingest scans whole documents and records every term encounter,
// with the term's tier at scan time, in the encounter database.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/japaniel/langsoft/pkg/db"
	"github.com/japaniel/langsoft/pkg/dictionary"
	"github.com/japaniel/langsoft/pkg/log"
	"github.com/japaniel/langsoft/pkg/reference"
	"github.com/japaniel/langsoft/pkg/tokenize"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Classifier reports the current tier of a term. Absent terms report false.
type Classifier interface {
	Classify(term string) (dictionary.Tier, bool)
}

// Ingester records the terms of a document's sentences in the database.
type Ingester struct {
	DB         *sql.DB
	Classifier Classifier
	// Reference, when set, supplies readings for recorded terms.
	Reference *reference.Index
	Tokenizer *tokenize.Tokenizer
	// Language is stored with every term.
	Language  string
	BatchSize int
	// OnProgress is called periodically with the number of processed sentences and total sentences.
	OnProgress func(current, total int)

	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates a new Ingester.
func NewIngester(conn *sql.DB, classifier Classifier) *Ingester {
	return &Ingester{
		DB:         conn,
		Classifier: classifier,
		Tokenizer:  tokenize.Default,
		BatchSize:  50,
		Workers:    4,
	}
}

// termCount is one distinct term of a sentence.
type termCount struct {
	Term    string
	Reading string
	Tier    string
	Count   int
}

// processedSentence holds the result of processing a sentence before DB ingestion
type processedSentence struct {
	Index    int
	Sentence string
	Terms    []termCount
	Error    error
}

// Ingest classifies sentences concurrently and writes the encounters in
// batches, in sentence order. Progress is checkpointed per sentence, so a
// second call for the same document resumes after the last stored sentence.
// It returns the number of term occurrences recorded.
func (ig *Ingester) Ingest(ctx context.Context, documentID int64, sentences []string) (int, error) {
	lastProcessed, err := db.GetDocumentProgress(ig.DB, documentID)
	if err != nil {
		log.WarnErr(log.CatIngest, "Failed to retrieve progress", err, "document", documentID)
		lastProcessed = -1
	}
	if lastProcessed >= 0 {
		log.Info(log.CatIngest, "Resuming document", "document", documentID, "from", lastProcessed+1)
	}

	totalSentences := len(sentences)
	startIdx := lastProcessed + 1
	if startIdx >= totalSentences {
		return 0, nil
	}

	workers := max(ig.Workers, 1)
	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}
	resultCh := make(chan processedSentence, workers*2)
	closedResultCh := false
	doneCh := make(chan error, 1)

	var totalLinks int64

	bw := NewBatchWriter(ig.DB, ig.BatchSize, 100*time.Millisecond)

	defer func() {
		wp.Close()
		if !closedResultCh {
			close(resultCh)
		}
		_ = bw.Close()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	write := func(item processedSentence) error {
		return bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			for _, tc := range item.Terms {
				termID, err := db.CreateOrGetTerm(tx, tc.Term, tc.Term, tc.Reading, ig.Language)
				if err != nil {
					return fmt.Errorf("failed to persist term %s: %w", tc.Term, err)
				}
				if err := db.RecordEncounter(tx, termID, documentID, tc.Tier, item.Sentence, tc.Count); err != nil {
					return fmt.Errorf("failed to record term %d: %w", termID, err)
				}
				atomic.AddInt64(&totalLinks, int64(tc.Count))
			}
			if err := db.UpdateDocumentProgress(tx, documentID, item.Index); err != nil {
				return fmt.Errorf("failed to save progress: %w", err)
			}
			return nil
		})
	}

	go func() {
		defer close(doneCh)
		buffer := make(map[int]processedSentence)
		nextIdx := startIdx

		// drain writes the contiguous run of finished sentences starting at nextIdx.
		drain := func() error {
			for {
				item, ok := buffer[nextIdx]
				if !ok {
					return nil
				}
				delete(buffer, nextIdx)
				if err := write(item); err != nil {
					return err
				}
				if ig.OnProgress != nil && (nextIdx+1)%max(ig.BatchSize, 1) == 0 {
					ig.OnProgress(nextIdx+1, totalSentences)
				}
				nextIdx++
			}
		}

		for {
			select {
			case <-ctx.Done():
				doneCh <- ctx.Err()
				return
			default:
			}

			res, ok := <-resultCh
			if !ok {
				if err := drain(); err != nil {
					cancel()
					doneCh <- err
					return
				}
				if ig.OnProgress != nil {
					ig.OnProgress(totalSentences, totalSentences)
				}
				doneCh <- nil
				return
			}

			if res.Error != nil {
				// Stop producers so they don't block writing to resultCh.
				cancel()
				doneCh <- res.Error
				return
			}
			buffer[res.Index] = res

			if err := drain(); err != nil {
				cancel()
				doneCh <- err
				return
			}
		}
	}()

Loop:
	for i := startIdx; i < totalSentences; i++ {
		select {
		case <-ctx.Done():
			break Loop
		default:
		}

		idx := i
		sent := sentences[i]

		job := func(ctx context.Context) error {
			res := ig.processSentence(idx, sent)

			// A custom pool may outlive the result channel; never panic on shutdown.
			defer func() { _ = recover() }()
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}

		if err := wp.SubmitCtx(ctx, job); err != nil {
			if err == ctx.Err() || err == ErrPoolClosed {
				break Loop
			}
			return 0, err
		}
	}

	// No worker is running after Close, so closing resultCh tells the consumer
	// that no more items will arrive.
	wp.Close()
	close(resultCh)
	closedResultCh = true

	consumerErr := <-doneCh

	if err := bw.Close(); err != nil && consumerErr == nil {
		consumerErr = err
	}

	return int(atomic.LoadInt64(&totalLinks)), consumerErr
}

// processSentence tokenizes one sentence and classifies each distinct term.
func (ig *Ingester) processSentence(index int, sentence string) processedSentence {
	tk := ig.Tokenizer
	if tk == nil {
		tk = tokenize.Default
	}

	counts := make(map[string]*termCount)
	var ordered []*termCount
	for tok := range tk.All(sentence, 0) {
		term := dictionary.NormalizeTerm(tok.Text)
		if term == "" || isNumber(term) {
			continue
		}
		if tc, ok := counts[term]; ok {
			tc.Count++
			continue
		}
		tc := &termCount{Term: term, Tier: ig.tierOf(term), Count: 1}
		if ig.Reference != nil {
			tc.Reading = ig.Reference.Reading(term)
		}
		counts[term] = tc
		ordered = append(ordered, tc)
	}

	out := processedSentence{Index: index, Sentence: sentence}
	for _, tc := range ordered {
		out.Terms = append(out.Terms, *tc)
	}
	return out
}

// tierOf returns the stored tier name, or "" for unclassified terms.
func (ig *Ingester) tierOf(term string) string {
	if ig.Classifier == nil {
		return ""
	}
	tier, ok := ig.Classifier.Classify(term)
	if !ok || tier == dictionary.TierNone {
		return ""
	}
	return string(tier)
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
