package segmenter

// observation is what one processing step knows when it decides the boundary
type observation struct {
	speech       bool // the VAD kept samples from this frame
	eof          bool
	bufferEmpty  bool // nothing accumulated for decoding
	hasText      bool // a non-empty intermediate text is stored
	timerExpired bool // the sentence timer ran out and has not fired yet
}

// decision is the boundary policy's answer for one step
type decision struct {
	sentenceTimeout bool
	finalDecode     bool
	showDecoding    bool      // publish StatusDecoding while finalizing
	flush           FlushKind // kind to report when the utterance ends
}

// decide is the boundary transition table. It is a pure function of the mode
// and the step's observation.
func decide(mode SpeechMode, obs observation) decision {
	var d decision

	if !obs.speech && mode == ModeSingleSentence &&
		obs.bufferEmpty && !obs.hasText && obs.timerExpired {
		d.sentenceTimeout = true
	}

	switch {
	case obs.eof:
		d.finalDecode = true
	case mode == ModeSingleSentence && obs.hasText && !obs.speech:
		d.finalDecode = true
	case mode == ModeAutomatic && !obs.speech:
		d.finalDecode = true
	}

	// Automatic boundaries are continuous, so the decoding state is not shown
	d.showDecoding = d.finalDecode && mode != ModeAutomatic

	d.flush = FlushEOF
	if !obs.eof && mode == ModeAutomatic {
		d.flush = FlushRegular
	}

	return d
}
