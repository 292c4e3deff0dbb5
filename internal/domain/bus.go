package domain

// SelectionEvent is published by the bridge on every host selection change.
// Roots is nil when the selection is empty.
type SelectionEvent struct {
	FileKey  string
	FileName string
	Roots    []SceneObject
}

// Update is a finished serialization pass, pushed to display surfaces.
// Data marshals as null for an empty selection, not as [].
type Update struct {
	Rev     uint64  `json:"rev"`
	FileKey string  `json:"fileKey,omitempty"`
	Data    []*Node `json:"data"`
}

// Bus routes selection events from the bridge to the inspector and finished
// updates from the inspector to display surfaces. Delivery is at-most-once in
// emission order; a dropped event is recovered by the next selection change,
// never replayed.
type Bus interface {
	Publish(ev SelectionEvent)
	Subscribe() <-chan SelectionEvent
	SendUpdate(u Update)
	OnUpdate(name string, handler func(Update))
	Close()
}
