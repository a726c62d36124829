package world

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openrove/openrove/pkg/plan"
)

// Sim is an in-memory world implementing every collaborator interface. It
// stands in for the robot stack in tests and in the demo CLI: navigation
// teleports the base after an optional delay, perception matches against a
// scripted scene, and failures are injected by queueing them per primitive.
type Sim struct {
	mu            sync.Mutex
	pose          Pose
	objects       map[string]Object
	subscribers   map[int]func(Pose)
	nextSub       int
	navigateErrs  []error
	performErrs   []error
	navigateDelay time.Duration
	performed     []Action
	published     map[string]Pose
	removed       []string
}

// NewSim creates a simulated world with the robot at the origin and an
// empty scene.
func NewSim() *Sim {
	return &Sim{
		objects:     make(map[string]Object),
		subscribers: make(map[int]func(Pose)),
		published:   make(map[string]Pose),
	}
}

// OnPoseChanged implements PoseFeed.
func (s *Sim) OnPoseChanged(fn func(Pose)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// RobotPose returns the current simulated base pose.
func (s *Sim) RobotPose() Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// MoveTo displaces the robot base and notifies every pose subscriber. It
// models external motion: drift, a competing goal winning the base, or the
// completion of a navigation.
func (s *Sim) MoveTo(p Pose) {
	s.mu.Lock()
	s.pose = p
	subs := make([]func(Pose), 0, len(s.subscribers))
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, s.subscribers[id])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}

// SetNavigateDelay makes every subsequent Navigate take d before applying
// its motion.
func (s *Sim) SetNavigateDelay(d time.Duration) {
	s.mu.Lock()
	s.navigateDelay = d
	s.mu.Unlock()
}

// FailNavigate queues failures; each subsequent Navigate consumes one and
// returns it instead of moving.
func (s *Sim) FailNavigate(errs ...error) {
	s.mu.Lock()
	s.navigateErrs = append(s.navigateErrs, errs...)
	s.mu.Unlock()
}

// Navigate implements Navigator.
func (s *Sim) Navigate(ctx context.Context, target Pose) error {
	s.mu.Lock()
	delay := s.navigateDelay
	var queued error
	if len(s.navigateErrs) > 0 {
		queued = s.navigateErrs[0]
		s.navigateErrs = s.navigateErrs[1:]
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if queued != nil {
		return queued
	}

	s.MoveTo(target)
	return nil
}

// PlaceObject adds or replaces an object in the scene.
func (s *Sim) PlaceObject(obj Object) {
	s.mu.Lock()
	s.objects[obj.ID] = obj
	s.mu.Unlock()
}

// RemoveObject deletes an object from the scene.
func (s *Sim) RemoveObject(id string) {
	s.mu.Lock()
	delete(s.objects, id)
	s.mu.Unlock()
}

// Perceive implements Perceptor. Objects match on the "id" and "type"
// properties; with several matches the lowest object ID wins, so repeated
// perception of the same scene is stable.
func (s *Sim) Perceive(ctx context.Context, props map[string]interface{}) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	s.mu.Lock()
	candidates := make([]Object, 0, len(s.objects))
	for _, obj := range s.objects {
		if id, ok := props["id"].(string); ok && obj.ID != id {
			continue
		}
		if typ, ok := props["type"].(string); ok && obj.Type != typ {
			continue
		}
		candidates = append(candidates, obj)
	}
	s.mu.Unlock()

	if len(candidates) == 0 {
		return Object{}, plan.NewDesignatorUnresolvable(describeProps(props))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates[0], nil
}

// FailPerform queues failures; each subsequent Perform consumes one and
// returns it instead of acting.
func (s *Sim) FailPerform(errs ...error) {
	s.mu.Lock()
	s.performErrs = append(s.performErrs, errs...)
	s.mu.Unlock()
}

// Perform implements Performer. Successful picks remove the object from
// the scene; successful places add it back at the action target.
func (s *Sim) Perform(ctx context.Context, action Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if len(s.performErrs) > 0 {
		queued := s.performErrs[0]
		s.performErrs = s.performErrs[1:]
		s.mu.Unlock()
		return queued
	}
	s.performed = append(s.performed, action)
	switch action.Verb {
	case "pick":
		delete(s.objects, action.ObjectID)
	case "place":
		if action.ObjectID != "" {
			s.objects[action.ObjectID] = Object{ID: action.ObjectID, Pose: action.Target}
		}
	}
	s.mu.Unlock()
	return nil
}

// Performed returns the actions executed so far, in order.
func (s *Sim) Performed() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]Action, len(s.performed))
	copy(actions, s.performed)
	return actions
}

// PublishObjectPose implements ObjectSink.
func (s *Sim) PublishObjectPose(id string, pose Pose) {
	s.mu.Lock()
	s.published[id] = pose
	s.mu.Unlock()
}

// PublishObjectRemoved implements ObjectSink.
func (s *Sim) PublishObjectRemoved(id string) {
	s.mu.Lock()
	s.removed = append(s.removed, id)
	s.mu.Unlock()
}

// PublishedPoses returns the sink's recorded object poses.
func (s *Sim) PublishedPoses() map[string]Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Pose, len(s.published))
	for id, p := range s.published {
		out[id] = p
	}
	return out
}

// RemovedObjects returns the sink's recorded removals, in order.
func (s *Sim) RemovedObjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.removed))
	copy(out, s.removed)
	return out
}

func describeProps(props map[string]interface{}) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	desc := ""
	for _, k := range keys {
		if desc != "" {
			desc += ","
		}
		desc += fmt.Sprintf("%s=%v", k, props[k])
	}
	if desc == "" {
		return "object"
	}
	return "object(" + desc + ")"
}
