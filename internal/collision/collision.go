// Package collision checks body keypoints against a fence rectangle.
package collision

import (
	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/vision"
)

// Result reports whether a violation occurred and the first offending point.
type Result struct {
	Violated  bool
	Offending vision.Keypoint
}

// Detect returns a violation for the first in-frame keypoint outside fence.
// Points with x or y outside [0, 1) are off-screen and ignored. A nil fence
// or an empty keypoint list never violates.
func Detect(fence *boundary.Rect, kps []vision.Keypoint) Result {
	if fence == nil {
		return Result{}
	}
	for _, kp := range kps {
		if !inFrame(kp) {
			continue
		}
		if kp.X < fence.X0 || kp.X > fence.X1 || kp.Y < fence.Y0 || kp.Y > fence.Y1 {
			return Result{Violated: true, Offending: kp}
		}
	}
	return Result{}
}

func inFrame(kp vision.Keypoint) bool {
	return kp.X >= 0 && kp.X < 1 && kp.Y >= 0 && kp.Y < 1
}

// Landmark names used by RaisedHand.
const (
	LeftElbow  = "leftElbow"
	RightElbow = "rightElbow"
	LeftWrist  = "leftWrist"
	RightWrist = "rightWrist"
)

// RaisedHand reports whether either wrist is above its elbow. Image y grows
// downward, so "above" means a smaller y.
func RaisedHand(kps []vision.Keypoint) bool {
	byName := make(map[string]vision.Keypoint, len(kps))
	for _, kp := range kps {
		if kp.Name != "" {
			byName[kp.Name] = kp
		}
	}
	return above(byName, LeftWrist, LeftElbow) || above(byName, RightWrist, RightElbow)
}

func above(byName map[string]vision.Keypoint, wrist, elbow string) bool {
	w, okW := byName[wrist]
	e, okE := byName[elbow]
	return okW && okE && w.Y < e.Y
}
