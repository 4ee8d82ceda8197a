// Package trackmgr runs the per-camera detection pipeline: one worker
// goroutine per camera consumes frames from a latest-wins mailbox,
// generates the working-area mask, and drives the consecutive-frame
// strategy with the background strategy as fallback, reporting refined tip
// coordinates per probe serial number.
package trackmgr

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/AllenNeuralDynamics/parallax-sub001/internal/config"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/diffproc"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/logging"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/mask"
	"github.com/AllenNeuralDynamics/parallax-sub001/internal/probe"
	"github.com/AllenNeuralDynamics/parallax-sub001/pkg/geometry"
)

// Result is one confirmed probe sighting. Tip is in original-frame
// coordinates, sub-pixel refined when refinement succeeded.
type Result struct {
	Timestamp time.Time
	SN        string
	Tip       image.Point
}

// FoundFunc receives confirmed sightings on the worker goroutine; it must
// not block for long or frames will be dropped.
type FoundFunc func(Result)

// probeState bundles the tracking state for one probe serial number. The
// detector is shared by both processors so a fallback continues from the
// same orientation lock.
type probeState struct {
	detector *probe.Detector
	prevCmp  *diffproc.PrevFrameProcessor
	bgCmp    *diffproc.BackgroundProcessor
}

// Manager owns one camera's detection worker. Frames are submitted with
// Process from the capture thread; a newer frame replaces an unconsumed
// one, so a slow detection pass never builds a backlog.
type Manager struct {
	camera  string
	tuning  config.Tuning
	params  diffproc.Params
	resized geometry.Size
	onFound FoundFunc

	running   atomic.Bool
	detecting atomic.Bool
	wg        sync.WaitGroup

	mu       sync.Mutex
	frame    gocv.Mat
	frameTS  time.Time
	hasFrame bool
	sn        string
	pendZone  gocv.Mat
	hasZone   bool
	zoneDirty bool

	// Worker-owned state, never touched off the worker goroutine.
	maskGen *mask.Generator
	probes  map[string]*probeState
	prev    gocv.Mat
	hasPrev bool
}

// NewManager creates a detection manager for one camera. onFound may be
// nil when the caller only drives the pipeline for its side effects.
func NewManager(camera string, t config.Tuning, onFound FoundFunc) *Manager {
	params := diffproc.DefaultParams().
		WithCropSearch(t.CropInit, t.CropGrow).
		WithWeakSignal(t.WeakSignalFloor, t.ShadowFraction)
	return &Manager{
		camera:  camera,
		tuning:  t,
		params:  params,
		resized: geometry.NewSize(t.FrameWidth, t.FrameHeight),
		onFound: onFound,
		maskGen: mask.NewGenerator(),
		probes:  make(map[string]*probeState),
	}
}

// Start launches the worker goroutine. Starting a running manager is a
// no-op.
func (m *Manager) Start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	m.wg.Add(1)
	go m.run()
	logging.Infof("trackmgr %s: worker started", m.camera)
}

// Stop halts the worker and releases all held Mats. It blocks until the
// worker has exited; the manager can be started again afterwards.
func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	m.wg.Wait()
	logging.Infof("trackmgr %s: worker stopped", m.camera)
}

// Process submits a frame for detection. The frame is cloned, so the
// caller keeps ownership of its Mat. A frame still waiting in the mailbox
// is superseded and released.
func (m *Manager) Process(frame gocv.Mat, timestamp time.Time) {
	clone := frame.Clone()
	m.mu.Lock()
	if m.hasFrame {
		m.frame.Close()
	}
	m.frame = clone
	m.frameTS = timestamp
	m.hasFrame = true
	m.mu.Unlock()
}

// StartDetection selects the probe to track and enables detection.
// Tracking state per serial number persists across StartDetection calls,
// so switching back to a previously seen probe resumes its lock.
func (m *Manager) StartDetection(sn string) {
	m.mu.Lock()
	m.sn = sn
	m.mu.Unlock()
	m.detecting.Store(true)
	logging.Infof("trackmgr %s: detection on for probe %s", m.camera, sn)
}

// StopDetection disables detection; queued frames are discarded until
// detection is re-enabled.
func (m *Manager) StopDetection(sn string) {
	m.detecting.Store(false)
	logging.Infof("trackmgr %s: detection off for probe %s", m.camera, sn)
}

// SetReticleZone hands the worker a binary mask of reticle pixels at the
// working resolution; the background strategy uses it to reject reticle
// edges. The zone is cloned.
func (m *Manager) SetReticleZone(zone gocv.Mat) {
	clone := zone.Clone()
	m.mu.Lock()
	if m.hasZone {
		m.pendZone.Close()
	}
	m.pendZone = clone
	m.hasZone = true
	m.zoneDirty = true
	m.mu.Unlock()
}

// ReticleDetected reports the mask generator's cached reticle
// classification for this camera.
func (m *Manager) ReticleDetected() bool {
	return m.maskGen.ReticleDetected()
}

func (m *Manager) run() {
	defer m.wg.Done()
	defer m.cleanup()

	for m.running.Load() {
		frame, ts, sn, ok := m.takeFrame()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if m.detecting.Load() && sn != "" {
			m.processFrame(frame, ts, sn)
		}
		frame.Close()
		time.Sleep(time.Millisecond)
	}
}

// takeFrame drains the mailbox together with the selected serial number
// and any pending reticle zone.
func (m *Manager) takeFrame() (gocv.Mat, time.Time, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasFrame {
		return gocv.Mat{}, time.Time{}, "", false
	}
	frame, ts := m.frame, m.frameTS
	m.hasFrame = false

	if m.zoneDirty {
		for _, st := range m.probes {
			st.bgCmp.SetReticleZone(m.pendZone)
		}
		// The zone itself is kept for states created later.
		m.zoneDirty = false
	}
	return frame, ts, m.sn, true
}

// processFrame runs one detection pass: grayscale, resize, blur, mask,
// then first-sighting or tracking with the prev-frame strategy first and
// the background strategy as fallback. The previous-frame cache advances
// only on success so a missed frame does not poison the next comparison.
func (m *Manager) processFrame(frame gocv.Mat, ts time.Time, sn string) {
	gray := gocv.NewMat()
	switch frame.Channels() {
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	case 1:
		gray.Close()
		gray = frame.Clone()
	default:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	defer gray.Close()
	original := geometry.NewSize(gray.Cols(), gray.Rows())

	resizedMat := gocv.NewMat()
	defer resizedMat.Close()
	gocv.Resize(gray, &resizedMat, image.Pt(m.resized.Width, m.resized.Height), 0, 0, gocv.InterpolationDefault)

	curr := gocv.NewMat()
	gocv.GaussianBlur(resizedMat, &curr, image.Pt(9, 9), 0, 0, gocv.BorderDefault)

	maskMat := m.maskGen.Process(resizedMat)
	defer maskMat.Close()

	if !m.hasPrev {
		m.prev = curr
		m.hasPrev = true
		return
	}

	st := m.ensureState(sn, original)

	var ok bool
	if !st.detector.Acquired() {
		ok = st.prevCmp.FirstCompare(curr, m.prev, maskMat, gray)
		if !ok {
			ok = st.bgCmp.FirstCompare(curr, maskMat, gray)
		}
		if ok {
			logging.Infof("trackmgr %s: probe %s acquired angle=%d tip=%v",
				m.camera, sn, st.detector.Angle, st.detector.Tip)
		}
	} else {
		ok = st.prevCmp.UpdateCompare(curr, m.prev, maskMat, gray)
		if !ok {
			ok = st.bgCmp.UpdateCompare(curr, maskMat, gray)
		}
		if ok && m.onFound != nil {
			m.onFound(Result{Timestamp: ts, SN: sn, Tip: st.bgCmp.TipInOriginal()})
		}
	}

	if ok {
		m.prev.Close()
		m.prev = curr
	} else {
		curr.Close()
	}
}

// ensureState returns the tracking state for sn, creating it on first use
// once the original frame size is known.
func (m *Manager) ensureState(sn string, original geometry.Size) *probeState {
	if st, ok := m.probes[sn]; ok {
		return st
	}

	det := probe.NewDetector(sn, m.resized, probe.Config{
		AngleStep:     m.tuning.AngleStep,
		MinSeparation: m.tuning.MinSeparation,
		MaxLineCount:  m.tuning.MaxLineCount,
	})
	st := &probeState{
		detector: det,
		prevCmp:  diffproc.NewPrevFrameProcessor(det, original, m.resized, m.params),
		bgCmp:    diffproc.NewBackgroundProcessor(det, original, m.resized, m.params),
	}

	m.mu.Lock()
	if m.hasZone {
		st.bgCmp.SetReticleZone(m.pendZone)
	}
	m.probes[sn] = st
	m.mu.Unlock()

	logging.Debugf("trackmgr %s: tracking state created for probe %s", m.camera, sn)
	return st
}

func (m *Manager) cleanup() {
	m.mu.Lock()
	if m.hasFrame {
		m.frame.Close()
		m.hasFrame = false
	}
	if m.hasZone {
		m.pendZone.Close()
		m.hasZone = false
	}
	for _, st := range m.probes {
		st.bgCmp.Close()
	}
	m.probes = make(map[string]*probeState)
	m.mu.Unlock()

	if m.hasPrev {
		m.prev.Close()
		m.hasPrev = false
	}
	m.maskGen = mask.NewGenerator()
}
