// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through a small set of views:
//  1. [InputView] : Enter a playlist id or link
//  2. [LoadingView] : Follow the aggregation pipeline's progress
//  3. [TableView] : Browse the table, change the sort key and direction, shuffle
//  4. [KeyPickerView] : Pick a sort key from a list
//  5. [ConfirmView] : Confirm saving the displayed order upstream
//  6. [SavingView] : Follow the reorder moves as they are applied
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the [Engine], providing non-blocking status reporting during
// loads and saves.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
