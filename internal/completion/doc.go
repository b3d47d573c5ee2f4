// Package completion defines the text-completion client contract used by
// model-assisted components. It hides provider-specific APIs so callers only
// deal with plain prompts and replies.
package completion
