package app

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Sound cue asset paths played by clients.
const (
	SoundIncorrect = "/sounds/incorrect.wav"
	SoundPerfect   = "/sounds/perfect.mp3"
	SoundApplause  = "/sounds/applause.mp3"
)

var correctSounds = []string{
	"/sounds/correct.wav",
	"/sounds/correctcat1.mp3",
	"/sounds/correctcat2.mp3",
	"/sounds/correctcat3.mp3",
}

// perfectThreshold is the score above which a result earns the "perfect" cue.
const perfectThreshold = 5

// muted is process-wide and starts unmuted.
var muted atomic.Bool

// ToggleMute flips the mute flag and returns the new value.
func ToggleMute() bool {
	for {
		old := muted.Load()
		if muted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Muted reports the current mute flag.
func Muted() bool {
	return muted.Load()
}

var (
	cueMu  sync.Mutex
	cueRnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// AnswerCue picks the sound for an answer, or "" while muted.
func AnswerCue(correct bool) string {
	if correct {
		return CorrectCue()
	}
	return IncorrectCue()
}

// CorrectCue picks one of the correct-answer sounds at random.
func CorrectCue() string {
	if Muted() {
		return ""
	}
	cueMu.Lock()
	defer cueMu.Unlock()
	return correctSounds[cueRnd.Intn(len(correctSounds))]
}

func IncorrectCue() string {
	if Muted() {
		return ""
	}
	return SoundIncorrect
}

// ResultCue picks the sound for a finished quiz, or "" while muted.
func ResultCue(score int) string {
	if Muted() {
		return ""
	}
	if score > perfectThreshold {
		return SoundPerfect
	}
	return SoundApplause
}
