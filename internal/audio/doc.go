// Package audio provides per-urgency notification sound playback.
package audio
