//go:build coqui

package backend

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef struct ModelState ModelState;
typedef struct StreamingState StreamingState;

static int call_create_model(void* fn, const char* path, ModelState** out) {
	return ((int (*)(const char*, ModelState**))fn)(path, out);
}

static void call_free_model(void* fn, ModelState* model) {
	((void (*)(ModelState*))fn)(model);
}

static int call_enable_scorer(void* fn, ModelState* model, const char* path) {
	return ((int (*)(ModelState*, const char*))fn)(model, path);
}

static int call_create_stream(void* fn, ModelState* model, StreamingState** out) {
	return ((int (*)(ModelState*, StreamingState**))fn)(model, out);
}

static void call_free_stream(void* fn, StreamingState* stream) {
	((void (*)(StreamingState*))fn)(stream);
}

static void call_feed_audio(void* fn, StreamingState* stream, const short* buf, unsigned int size) {
	((void (*)(StreamingState*, const short*, unsigned int))fn)(stream, buf, size);
}

static char* call_decode(void* fn, StreamingState* stream) {
	return ((char* (*)(StreamingState*))fn)(stream);
}

static void call_free_string(void* fn, char* str) {
	((void (*)(char*))fn)(str);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// coquiAPI holds the resolved entry points of libstt
type coquiAPI struct {
	createModel        unsafe.Pointer
	freeModel          unsafe.Pointer
	enableScorer       unsafe.Pointer
	createStream       unsafe.Pointer
	freeStream         unsafe.Pointer
	finishStream       unsafe.Pointer
	intermediateDecode unsafe.Pointer
	feedAudio          unsafe.Pointer
	freeString         unsafe.Pointer
}

// CoquiModel is a Coqui STT model loaded through a dynamically opened libstt
type CoquiModel struct {
	mu     sync.Mutex
	lib    unsafe.Pointer
	api    coquiAPI
	handle *C.ModelState
}

// NewCoquiModel opens libraryPath, resolves every required symbol and loads
// the model at modelPath. Any missing symbol fails construction.
func NewCoquiModel(libraryPath, modelPath string) (*CoquiModel, error) {
	cLib := C.CString(libraryPath)
	defer C.free(unsafe.Pointer(cLib))

	lib := C.dlopen(cLib, C.RTLD_LAZY)
	if lib == nil {
		return nil, fmt.Errorf("coqui: open %s: %s", libraryPath, C.GoString(C.dlerror()))
	}

	m := &CoquiModel{lib: lib}
	if err := m.bind(); err != nil {
		C.dlclose(lib)
		return nil, err
	}

	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	var handle *C.ModelState
	status := C.call_create_model(m.api.createModel, cPath, &handle)
	if status != 0 || handle == nil {
		C.dlclose(lib)
		return nil, fmt.Errorf("coqui: create model %q failed with status %d", modelPath, int(status))
	}
	m.handle = handle

	return m, nil
}

func (m *CoquiModel) bind() error {
	symbols := []struct {
		name string
		dst  *unsafe.Pointer
	}{
		{"STT_CreateModel", &m.api.createModel},
		{"STT_FreeModel", &m.api.freeModel},
		{"STT_EnableExternalScorer", &m.api.enableScorer},
		{"STT_CreateStream", &m.api.createStream},
		{"STT_FreeStream", &m.api.freeStream},
		{"STT_FinishStream", &m.api.finishStream},
		{"STT_IntermediateDecode", &m.api.intermediateDecode},
		{"STT_FeedAudioContent", &m.api.feedAudio},
		{"STT_FreeString", &m.api.freeString},
	}

	for _, sym := range symbols {
		cName := C.CString(sym.name)
		ptr := C.dlsym(m.lib, cName)
		C.free(unsafe.Pointer(cName))
		if ptr == nil {
			return fmt.Errorf("coqui: %w: %s", ErrSymbolMissing, sym.name)
		}
		*sym.dst = ptr
	}
	return nil
}

// CreateStream implements Model
func (m *CoquiModel) CreateStream() (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil, fmt.Errorf("coqui: model is closed")
	}

	var stream *C.StreamingState
	status := C.call_create_stream(m.api.createStream, m.handle, &stream)
	if status != 0 || stream == nil {
		return nil, fmt.Errorf("coqui: create stream failed with status %d", int(status))
	}
	return &coquiStream{api: &m.api, handle: stream}, nil
}

// EnableExternalScorer implements Model
func (m *CoquiModel) EnableExternalScorer(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return fmt.Errorf("coqui: model is closed")
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	if status := C.call_enable_scorer(m.api.enableScorer, m.handle, cPath); status != 0 {
		return fmt.Errorf("coqui: enable scorer %q failed with status %d", path, int(status))
	}
	return nil
}

// Close implements Model
func (m *CoquiModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		C.call_free_model(m.api.freeModel, m.handle)
		m.handle = nil
	}
	if m.lib != nil {
		C.dlclose(m.lib)
		m.lib = nil
	}
	return nil
}

type coquiStream struct {
	api    *coquiAPI
	handle *C.StreamingState
}

func (s *coquiStream) Feed(samples []int16) error {
	if s.handle == nil {
		return ErrStreamClosed
	}
	if len(samples) == 0 {
		return nil
	}
	C.call_feed_audio(s.api.feedAudio, s.handle, (*C.short)(unsafe.Pointer(&samples[0])), C.uint(len(samples)))
	return nil
}

func (s *coquiStream) IntermediateDecode() (string, error) {
	if s.handle == nil {
		return "", ErrStreamClosed
	}
	return s.takeString(C.call_decode(s.api.intermediateDecode, s.handle)), nil
}

// Finish consumes the native stream; it must not be freed afterwards
func (s *coquiStream) Finish() (string, error) {
	if s.handle == nil {
		return "", ErrStreamClosed
	}
	cstr := C.call_decode(s.api.finishStream, s.handle)
	s.handle = nil
	return s.takeString(cstr), nil
}

func (s *coquiStream) Close() error {
	if s.handle != nil {
		C.call_free_stream(s.api.freeStream, s.handle)
		s.handle = nil
	}
	return nil
}

// takeString copies a backend owned string and frees the original
func (s *coquiStream) takeString(cstr *C.char) string {
	if cstr == nil {
		return ""
	}
	text := C.GoString(cstr)
	C.call_free_string(s.api.freeString, cstr)
	return text
}
