package main

import (
	"fmt"

	"github.com/mjpery-beep/tasklist/tasklist"
	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes on a todo",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <todo-id> <content>",
	Short: "Add a note to a todo",
	Args:  cobra.ExactArgs(2),
	RunE:  runNoteAdd,
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <todo-id> <note-id>",
	Short: "Delete a note you authored",
	Args:  cobra.ExactArgs(2),
	RunE:  runNoteRm,
}

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage media attachments on a todo",
}

var mediaAttachCmd = &cobra.Command{
	Use:   "attach <todo-id> <attachment-id>...",
	Short: "Attach media to a todo",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMediaAttach,
}

var mediaDetachCmd = &cobra.Command{
	Use:   "detach <todo-id> <attachment-id>",
	Short: "Detach media from a todo",
	Args:  cobra.ExactArgs(2),
	RunE:  runMediaDetach,
}

func init() {
	rootCmd.AddCommand(noteCmd, mediaCmd)
	noteCmd.AddCommand(noteAddCmd, noteRmCmd)
	mediaCmd.AddCommand(mediaAttachCmd, mediaDetachCmd)
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}

	if err := engine.AddNote(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}

	fmt.Printf("Added note to %s\n", args[0])
	return nil
}

func runNoteRm(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}

	if err := engine.DeleteNote(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}

	fmt.Printf("Deleted note %s from %s\n", args[1], args[0])
	return nil
}

func runMediaAttach(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}

	descriptors := make([]tasklist.MediaAttachment, 0, len(args)-1)
	for _, attachmentID := range args[1:] {
		descriptors = append(descriptors, tasklist.MediaAttachment{AttachmentID: attachmentID})
	}

	if err := engine.AttachMedia(cmd.Context(), args[0], descriptors); err != nil {
		return err
	}

	fmt.Printf("Attached %d file(s) to %s\n", len(descriptors), args[0])
	return nil
}

func runMediaDetach(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}

	if err := engine.DetachMedia(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}

	fmt.Printf("Detached %s from %s\n", args[1], args[0])
	return nil
}
