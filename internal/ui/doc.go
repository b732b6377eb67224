// Package ui implements the interactive terminal view for long transfers.
//
// The model consumes the engine's progress channel one update at a time via
// a tea.Cmd, so rendering never blocks the transfer and a dropped update
// only costs a repaint.
package ui
