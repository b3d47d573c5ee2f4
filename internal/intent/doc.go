// Package intent classifies incoming events into embassy actions. The rule
// router works from a keyword table and is the default; a model-assisted
// router can wrap it for free-form text, falling back to Unknown whenever
// the model misbehaves.
package intent
