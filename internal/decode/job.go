// File: internal/decode/job.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Job carries one decode submission through header parsing, primary decode,
// optional auxiliary channel decode and completion.

package decode

import (
	"log/slog"
	"time"

	"github.com/momentics/hioload-decode/api"
	"github.com/momentics/hioload-decode/raw"
)

// auxChannel and auxOf select alpha out of a four component source.
const (
	auxChannel = 4
	auxOf      = 4
)

// Params are the inputs of a job.
type Params struct {
	Handle    api.Handle
	Source    api.FormattedImage
	Discard   int // >= 0 selects a discard level, negative keeps the current one
	NeedsAux  bool
	Responder api.Responder
	TimeSlice time.Duration // 0 decodes to completion in one Process call
	Pool      api.BytePool
	Logger    *slog.Logger

	// OnFinish, if set, observes the delivered outcome after the responder.
	OnFinish func(success bool)
}

// Job is a single decode request. Process is called by one worker at a time;
// Finish is called once, after Process returned true.
type Job struct {
	p Params

	raw *raw.Image
	aux *raw.Image

	rawDone    bool // primary decode reported done, with or without data
	decodedRaw bool
	decodedAux bool
	finished   bool
}

var _ api.Task = (*Job)(nil)

// New creates a job from p.
func New(p Params) *Job {
	return &Job{p: p}
}

// Handle returns the submission handle.
func (j *Job) Handle() api.Handle { return j.p.Handle }

// HasResponder reports whether a completion handler is attached.
func (j *Job) HasResponder() bool { return j.p.Responder != nil }

// Process advances the decode. It returns true when no more work remains,
// whether or not the decode succeeded. A panicking decoder ends the job
// as a failure.
func (j *Job) Process() (done bool) {
	defer func() {
		if r := recover(); r != nil {
			j.decodedRaw = false
			j.decodedAux = false
			if j.p.Logger != nil {
				j.p.Logger.Warn("decoder panicked",
					slog.Uint64("handle", uint64(j.p.Handle)), slog.Any("panic", r))
			}
			done = true
		}
	}()
	return j.process()
}

func (j *Job) process() bool {
	src := j.p.Source
	if src == nil {
		return true
	}
	done := true
	if !j.rawDone {
		if j.raw == nil {
			if !src.UpdateData() {
				return true
			}
			if src.Width()*src.Height()*src.Components() == 0 {
				return true
			}
			if j.p.Discard >= 0 {
				src.SetDiscardLevel(j.p.Discard)
			}
			j.raw = raw.New(src.Width(), src.Height(), src.Components(), j.p.Pool)
		}
		done = src.Decode(j.raw, j.p.TimeSlice)
		j.rawDone = done
		// decoders may drop the buffer contents on a failed terminal decode
		j.decodedRaw = done && j.raw.HasData()
	}
	if done && j.p.NeedsAux && !j.decodedAux {
		if j.aux == nil {
			j.aux = raw.New(src.Width(), src.Height(), 1, j.p.Pool)
		}
		done = src.DecodeChannels(j.aux, j.p.TimeSlice, auxChannel, auxOf)
		j.decodedAux = done && j.aux.HasData()
	}
	return done
}

// Succeeded reports the outcome Finish would deliver for a completed job.
func (j *Job) Succeeded() bool {
	return j.decodedRaw && (!j.p.NeedsAux || j.decodedAux)
}

// Finish delivers the outcome to the responder and drops the job's buffer
// references. Calls after the first are ignored.
func (j *Job) Finish(completed bool) {
	if j.finished {
		return
	}
	j.finished = true
	success := completed && j.Succeeded()
	if r := j.p.Responder; r != nil {
		j.notify(r, success)
	}
	if j.p.OnFinish != nil {
		j.p.OnFinish(success)
	}
	if j.raw != nil {
		j.raw.Release()
		j.raw = nil
	}
	if j.aux != nil {
		j.aux.Release()
		j.aux = nil
	}
	j.p.Source = nil
	j.p.Responder = nil
}

// notify calls the responder. A panicking responder is logged and does not
// take the worker down with it.
func (j *Job) notify(r api.Responder, success bool) {
	defer func() {
		if p := recover(); p != nil && j.p.Logger != nil {
			j.p.Logger.Warn("responder panicked",
				slog.Uint64("handle", uint64(j.p.Handle)), slog.Any("panic", p))
		}
	}()
	r.Completed(success, rawOrNil(j.raw), rawOrNil(j.aux))
}

// rawOrNil keeps a nil *raw.Image from becoming a non-nil interface.
func rawOrNil(img *raw.Image) api.RawImage {
	if img == nil {
		return nil
	}
	return img
}
