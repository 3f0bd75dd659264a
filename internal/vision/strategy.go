package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math/rand"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/local/rollscan/internal/ai"
	"github.com/local/rollscan/internal/metrics"
	"github.com/local/rollscan/internal/voter"
)

const systemPrompt = `You read scanned electoral roll pages. Each page shows a grid of voter cards.
For every card return one object with: sl_no, id (the EPIC number), name, name_te (name in the regional script, if printed),
relative_name (father/husband/mother name), house_no, age, gender, and box: the voter photo as [ymin, xmin, ymax, xmax]
scaled to 0-1000. Copy assembly_name, parliament_name and polling_station_no from the page header onto every card.
Return only a JSON array. Return [] for pages without voter cards.`

const userPrompt = "Extract every voter card on this page."

// Strategy runs one page through the vision model with model rotation.
type Strategy struct {
	Client   ai.Client
	Schedule Schedule
	Timeout  time.Duration

	// Sleep waits between attempts; it returns early with ctx's error.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns the random part of a retry delay.
	Jitter func() time.Duration
	// Limiter caps concurrent calls per model; nil means unlimited.
	Limiter Limiter
}

// Limiter hands out per-model request slots.
type Limiter interface {
	Acquire(ctx context.Context, provider, model string) (func(), error)
}

// New returns a Strategy with real sleeping and jitter.
func New(c ai.Client, s Schedule, timeout time.Duration) *Strategy {
	st := &Strategy{Client: c, Schedule: s, Timeout: timeout, Sleep: sleepCtx}
	st.Jitter = func() time.Duration {
		if st.Schedule.MaxJitter <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(st.Schedule.MaxJitter)))
	}
	return st
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Extract returns the page's voters, or an empty slice once every attempt
// has failed. page is 1-based; img is the encoded page image.
func (s *Strategy) Extract(ctx context.Context, img []byte, mime string, page int, photos bool) []voter.Voter {
	start := time.Now()
	recs, err := s.Records(ctx, img, mime, page)
	if err != nil {
		metrics.ObservePage("vision", "failed", time.Since(start))
		log.Warn().Err(err).Int("page", page).Msg("vision page exhausted")
		return []voter.Voter{}
	}

	var decoded image.Image
	if photos {
		if decoded, err = imaging.Decode(bytes.NewReader(img)); err != nil {
			log.Warn().Err(err).Int("page", page).Msg("decode page for photos")
		}
	}
	out := make([]voter.Voter, 0, len(recs))
	for _, r := range recs {
		v := r.Voter(page)
		if decoded != nil && len(r.Box) > 0 {
			if b64, err := CropNormalized(decoded, r.Box, BoxPadding); err == nil {
				v.PhotoBase64 = b64
			} else {
				log.Debug().Err(err).Int("page", page).Str("epic_no", v.EpicNo).Msg("photo crop skipped")
			}
		}
		out = append(out, v)
	}
	metrics.ObservePage("vision", "ok", time.Since(start))
	return out
}

// Records walks the attempt schedule until a response parses or the
// budget runs out.
func (s *Strategy) Records(ctx context.Context, img []byte, mime string, page int) ([]voter.RawRecord, error) {
	if len(s.Schedule.Models) == 0 {
		return nil, fmt.Errorf("no vision models configured")
	}
	model := s.Schedule.ModelFor(0)
	for i := 0; ; i++ {
		recs, err := s.attempt(ctx, model, img, mime, page, i)
		var jitter time.Duration
		if err != nil && s.Jitter != nil {
			jitter = s.Jitter()
		}
		step := s.Schedule.Next(i, err, jitter)
		switch step.Outcome {
		case Success:
			return recs, nil
		case Exhausted:
			return nil, fmt.Errorf("vision: %d attempts failed, last: %w", i+1, err)
		}
		log.Info().
			Int("page", page).
			Int("attempt", i+1).
			Str("next_model", step.NextModel).
			Dur("delay", step.Delay).
			Str("class", ClassifyError(err)).
			Msg("vision attempt failed, retrying")
		if err := s.Sleep(ctx, step.Delay); err != nil {
			return nil, err
		}
		model = step.NextModel
	}
}

func (s *Strategy) attempt(ctx context.Context, model string, img []byte, mime string, page, i int) ([]voter.RawRecord, error) {
	actx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if s.Limiter != nil {
		release, err := s.Limiter.Acquire(ctx, s.Client.Name(), model)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	start := time.Now()
	resp, err := s.Client.Do(actx, ai.Request{
		Page:         page,
		Model:        model,
		SystemPrompt: systemPrompt,
		Prompt:       userPrompt,
		Image:        img,
		ImageMIME:    mime,
		Schema:       ResponseSchema(),
	})
	if err == nil {
		var recs []voter.RawRecord
		if recs, err = ParseRecords(resp.Text); err == nil {
			metrics.ObserveAttempt(s.Client.Name(), model, "success", time.Since(start))
			log.Debug().Int("page", page).Int("attempt", i+1).Str("model", model).Int("records", len(recs)).Msg("vision attempt ok")
			return recs, nil
		}
		err = &ParseError{Err: err}
	}
	metrics.ObserveAttempt(s.Client.Name(), model, ClassifyError(err), time.Since(start))
	return nil, err
}
