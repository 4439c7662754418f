package bookkeeping_test

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/meerkat-pipeline/mkpipe/pkg/bookkeeping"
	"github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils/try"
)

func TestAdvance(t *testing.T) {
	cfg := pipeline.Default()

	for _, expected := range []int{1, 2} {
		st := try.To(bookkeeping.Advance(cfg)).OrFatal(t)
		if st.Loop != expected {
			t.Errorf("unexpected loop: %d (expected %d)", st.Loop, expected)
		}
		if saved := try.To(cfg.Int(pipeline.SectionSelfcal, "loop")).OrFatal(t); saved != expected {
			t.Errorf("loop is not written: %d", saved)
		}
	}

	st, err := bookkeeping.Advance(cfg)
	if !errors.Is(err, bookkeeping.ErrLoopsExhausted) {
		t.Errorf("unexpected error: %v", err)
	}
	if !st.IsFinal() {
		t.Errorf("unexpected state: %+v", st)
	}
	if saved := try.To(cfg.Int(pipeline.SectionSelfcal, "loop")).OrFatal(t); saved != 2 {
		t.Errorf("loop should not be changed: %d", saved)
	}
}

func TestReadLoopState_outOfRange(t *testing.T) {
	cfg := pipeline.Default()
	cfg.Set(pipeline.SectionSelfcal, "loop", pipeline.Int(3))
	if _, err := bookkeeping.ReadLoopState(cfg); !errors.Is(err, bookkeeping.ErrLoopOutOfRange) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestArgs(t *testing.T) {
	newConfig := func() *pipeline.Config {
		cfg := pipeline.Default()
		cfg.Set(pipeline.SectionData, "vis", pipeline.String("/data/1491291289.ms"))
		cfg.Set(pipeline.SectionSelfcal, "discard_nloops", pipeline.Int(1))
		return cfg
	}

	t.Run("first loop", func(t *testing.T) {
		fsys := fstest.MapFS{
			"1491291289_im_0.islmask/table.dat": {Data: []byte{}},
		}
		args := try.To(bookkeeping.Args(newConfig(), fsys, 0)).OrFatal(t)

		if args.Final {
			t.Error("first loop is not final")
		}
		if args.Threshold != "0.5mJy" {
			t.Errorf("unexpected threshold: %s", args.Threshold)
		}
		if args.Image["niter"] != int64(10000) {
			t.Errorf("unexpected niter: %v", args.Image["niter"])
		}
		if args.Solve["calmode"] != "p" {
			t.Errorf("unexpected calmode: %v", args.Solve["calmode"])
		}
		if diff := cmp.Diff([]string{}, args.PreviousCaltables); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		expected := bookkeeping.Decision{ReuseMask: true}
		if args.Decision != expected {
			t.Errorf("unexpected decision: %+v", args.Decision)
		}
	})

	t.Run("final loop", func(t *testing.T) {
		fsys := fstest.MapFS{
			"1491291289_im_1.rms":         {Data: []byte("1e-05")},
			"1491291289_im_2.image.tt0/x": {Data: []byte{}},
			"1491291289.gcal0/table.dat":  {Data: []byte{}},
			"1491291289.gcal1/table.dat":  {Data: []byte{}},
		}
		args := try.To(bookkeeping.Args(newConfig(), fsys, 2)).OrFatal(t)

		if !args.Final {
			t.Error("loop 2 is final")
		}
		if args.Solve != nil {
			t.Errorf("final loop has no solve: %v", args.Solve)
		}
		if args.Threshold != "0.0001Jy" {
			t.Errorf("unexpected threshold: %s", args.Threshold)
		}
		if diff := cmp.Diff([]string{"1491291289.gcal1"}, args.PreviousCaltables); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		expected := bookkeeping.Decision{SkipImaging: true, SkipSolve: true}
		if args.Decision != expected {
			t.Errorf("unexpected decision: %+v", args.Decision)
		}
	})

	t.Run("relative threshold without rms", func(t *testing.T) {
		_, err := bookkeeping.Args(newConfig(), fstest.MapFS{}, 1)
		if !errors.Is(err, bookkeeping.ErrNoRMS) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestInventory(t *testing.T) {
	fsys := fstest.MapFS{
		"obs_im_0.image.tt0/table.dat": {Data: []byte{}},
		"obs_im_0.islmask/table.dat":   {Data: []byte{}},
		"obs_im_0.rms":                 {Data: []byte("3e-05")},
		"obs.gcal0/table.dat":          {Data: []byte{}},
	}
	cfg := pipeline.Default()
	lp := try.To(bookkeeping.ReadLoopParams(cfg)).OrFatal(t)

	inv := try.To(bookkeeping.Inventory(fsys, "obs.ms", lp)).OrFatal(t)
	if len(inv) != 3 {
		t.Fatalf("unexpected number of loops: %d", len(inv))
	}
	first := inv[0]
	if !first.Image || !first.Mask || first.FITS || !first.Caltable {
		t.Errorf("unexpected inventory of loop 0: %+v", first)
	}
	if first.RMS == nil || *first.RMS != 3e-05 {
		t.Errorf("unexpected rms: %v", first.RMS)
	}
	for _, later := range inv[1:] {
		if later.Image || later.Mask || later.Caltable || later.RMS != nil {
			t.Errorf("unexpected inventory of loop %d: %+v", later.Names.Loop, later)
		}
	}
}
