package ability

import (
	"fmt"
	"strings"

	"osgpt/pkg/schema"
)

// readLimit bounds how much file content is fed back into the model
// conversation.
const readLimit = 2000

// ReadFile reads a workspace file and returns its content in the result
// message. It produces no activity; reading is not visible progress.
func ReadFile() *Ability {
	return &Ability{
		Name:        "read_file",
		Description: "Read a file from the shared workspace and return its content.",
		Parameters: []Param{
			{Name: "filename", Type: "string", Description: "Name of the file to read.", Required: true},
		},
		Accepts: []string{"filename"},
		Handler: func(ctx Ctx, args Args) (*Result, error) {
			name, ok := args.String("filename")
			if !ok || name == "" {
				return nil, fmt.Errorf("filename is required")
			}
			content, err := ctx.Workspace.Files.ReadFile(name)
			if err != nil {
				return nil, err
			}
			if len(content) > readLimit {
				content = content[:readLimit] + "\n... (truncated)"
			}
			return OK(fmt.Sprintf("Content of %s:\n%s", name, content)), nil
		},
	}
}

// WriteFile writes a workspace file and records the upload on the current
// issue. Writing over an existing attachment records an update instead.
func WriteFile() *Ability {
	return &Ability{
		Name:        "write_file",
		Description: "Create or overwrite a file in the shared workspace and attach it to the current issue.",
		Parameters: []Param{
			{Name: "filename", Type: "string", Description: "Name of the file to write.", Required: true},
			{Name: "content", Type: "string", Description: "Full content of the file.", Required: true},
		},
		Accepts: []string{"filename", "content"},
		Handler: func(ctx Ctx, args Args) (*Result, error) {
			name, ok := args.String("filename")
			if !ok || name == "" {
				return nil, fmt.Errorf("filename is required")
			}
			content, ok := args.String("content")
			if !ok {
				return nil, fmt.Errorf("content is required")
			}

			var previous *schema.Attachment
			for _, att := range ctx.Issue.Attachments() {
				if att.Filename == name {
					existing := att
					previous = &existing
					break
				}
			}

			att, err := ctx.Workspace.Files.WriteFile(name, content)
			if err != nil {
				return nil, err
			}

			var act schema.Activity
			if previous != nil {
				act = schema.NewAttachmentUpdate(ctx.Agent, *previous, att)
			} else {
				act = schema.NewAttachmentUpload(ctx.Agent, att)
			}
			ctx.Issue.AddActivity(act)
			return OK(fmt.Sprintf("Wrote %s (%d bytes) and attached it to issue #%d.", name, att.Filesize, ctx.Issue.ID), act).
				WithAttachments(att), nil
		},
	}
}

// ListFiles lists the workspace files. Like read_file it produces no
// activity.
func ListFiles() *Ability {
	return &Ability{
		Name:        "list_files",
		Description: "List the files in the shared workspace.",
		Parameters:  nil,
		Accepts:     nil,
		Handler: func(ctx Ctx, args Args) (*Result, error) {
			files, err := ctx.Workspace.Files.ListFiles()
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				return OK("The workspace has no files yet."), nil
			}
			var b strings.Builder
			b.WriteString("Workspace files:")
			for _, f := range files {
				fmt.Fprintf(&b, "\n- %s (%d bytes)", f.Filename, f.Filesize)
			}
			return OK(b.String()), nil
		},
	}
}
