// Package biometrictest provides in-memory biometric channels for tests.
package biometrictest

import (
	"context"
	"fmt"
	"sync"

	"github.com/odyssey-erp/odyssey-mfa/internal/biometric"
)

// Face is a scripted biometric.FaceChannel. Detect treats the sample bytes as the face id;
// Verify returns Scores[faceID]. Samples listed in NoFace are reported as containing no face.
type Face struct {
	mu sync.Mutex

	Scores map[string]float64
	NoFace map[string]bool

	EnsureErr error
	CreateErr error
	AddErr    error
	TrainErr  error
	DetectErr error
	VerifyErr error

	Persons  []string
	Faces    map[string][][]byte
	Trained  int
	Detected int
	Verified int
}

// NewFace returns an empty Face.
func NewFace() *Face {
	return &Face{Scores: map[string]float64{}, NoFace: map[string]bool{}, Faces: map[string][][]byte{}}
}

func (f *Face) EnsureGroup(ctx context.Context) error {
	return f.EnsureErr
}

func (f *Face) CreatePerson(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	id := fmt.Sprintf("person-%d", len(f.Persons)+1)
	f.Persons = append(f.Persons, id)
	return id, nil
}

func (f *Face) AddFace(ctx context.Context, personID string, image []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AddErr != nil {
		return f.AddErr
	}
	f.Faces[personID] = append(f.Faces[personID], image)
	return nil
}

func (f *Face) Train(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TrainErr != nil {
		return f.TrainErr
	}
	f.Trained++
	return nil
}

func (f *Face) Detect(ctx context.Context, image []byte) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Detected++
	if f.DetectErr != nil {
		return "", false, f.DetectErr
	}
	if f.NoFace[string(image)] {
		return "", false, nil
	}
	return string(image), true, nil
}

func (f *Face) Verify(ctx context.Context, faceID, personID string) (biometric.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Verified++
	if f.VerifyErr != nil {
		return biometric.Signal{}, f.VerifyErr
	}
	score := f.Scores[faceID]
	return biometric.Signal{OK: score >= 0.5, Score: score}, nil
}

// Calls reports how many Detect and Verify calls were made.
func (f *Face) Calls() (detected, verified int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Detected, f.Verified
}

// Voice is a scripted biometric.VoiceChannel. Verify accepts audio listed in Accept.
type Voice struct {
	mu sync.Mutex

	Accept map[string]bool

	CreateErr error
	EnrollErr error
	VerifyErr error

	Profiles []string
	Enrolled map[string]int
	Verified int
}

// NewVoice returns an empty Voice.
func NewVoice() *Voice {
	return &Voice{Accept: map[string]bool{}, Enrolled: map[string]int{}}
}

func (v *Voice) CreateProfile(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.CreateErr != nil {
		return "", v.CreateErr
	}
	id := fmt.Sprintf("profile-%d", len(v.Profiles)+1)
	v.Profiles = append(v.Profiles, id)
	return id, nil
}

func (v *Voice) Enroll(ctx context.Context, profileID string, audio []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.EnrollErr != nil {
		return v.EnrollErr
	}
	v.Enrolled[profileID]++
	return nil
}

func (v *Voice) Verify(ctx context.Context, profileID string, audio []byte) (biometric.Signal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Verified++
	if v.VerifyErr != nil {
		return biometric.Signal{}, v.VerifyErr
	}
	if v.Accept[string(audio)] {
		return biometric.Signal{OK: true, Score: 1}, nil
	}
	return biometric.Signal{}, nil
}

var (
	_ biometric.FaceChannel  = (*Face)(nil)
	_ biometric.VoiceChannel = (*Voice)(nil)
)
