// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	FileNotFoundId Id = iota + 1
	DecodeFailedId
	ValidationFailedId
	GuidToolFailedId
	GuidMismatchId
	GuidsDbInvalidId
	ConfigLoadFailedId
	DeAuthNotSupportedId
	OutputWriteFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	fileNotFoundIssue = &Issue{
		id: FileNotFoundId,
		mdMsg: `
# Input file not found!

We could not open the capsule file you pointed us at.

## Things you can try:
- Check the path for typos
- Check that the file exists and is readable:
~~~
$ ls -l <file>
~~~`,
	}

	decodeFailedIssue = &Issue{
		id: DecodeFailedId,
		mdMsg: `
# Failed to decode capsule!

The input file does not parse as an FMP capsule.

## Common causes:
- The file is not a capsule at all (wrong file passed)
- The capsule is truncated
- A size field points past the end of the file

## Things you can try:
- Check the first 16 bytes against the FMP capsule GUID:
~~~
$ xxd -l 16 <file>
~~~
- Run with debug output to see where decoding stopped:
~~~
$ capsule-tool --debug <file>
~~~`,
	}

	validationFailedIssue = &Issue{
		id: ValidationFailedId,
		mdMsg: `
# Capsule validation failed!

The capsule decoded fine but one of its fields does not hold the value
required of an FMP capsule.

## Things you can try:
- Read the first reported failure; checks run in order and stop at the
  first bad field
- Continue past validation anyway:
~~~
$ capsule-tool --force <file>
~~~`,
	}

	guidToolFailedIssue = &Issue{
		id: GuidToolFailedId,
		mdMsg: `
# GUID tool failed!

The external GUID identification tool exited with an error.

## Things you can try:
- Check the tool is installed and on your PATH
- Point us at the tool explicitly:
~~~
$ capsule-tool --guid-tool /path/to/guid-tool <file>
~~~
- Run the tool by hand to see its error:
~~~
$ guid-tool 12345678-1234-5678-1234-56789abcdef0
~~~`,
	}

	guidMismatchIssue = &Issue{
		id: GuidMismatchId,
		mdMsg: `
# Unexpected capsule GUID!

The capsule's update image type id differs from the GUID you said to
expect.

## Things you can try:
- Check the --expected-guid value for typos
- Print the capsule's GUID to compare:
~~~
$ capsule-tool --print-guid <file>
~~~
- Continue anyway:
~~~
$ capsule-tool --force --expected-guid <guid> <file>
~~~`,
	}

	guidsDbInvalidIssue = &Issue{
		id: GuidsDbInvalidId,
		mdMsg: `
# Invalid GUIDs database!

The GUIDs database file failed validation.

## Common causes:
- Invalid CUE syntax
- Missing the ` + "`guid_tool_database: true`" + ` marker
- A malformed GUID in an entry
- Two entries sharing a GUID or a description

## Example of a valid database:
~~~cue
guid_tool_database: true

known_guids: [
	{
		guid:        "6dcbd5ed-e82d-4c44-bda1-7194199ad92a"
		description: "EFI firmware management capsule"
	},
]
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the capsule-tool configuration file.

## Configuration file locations:
- Linux: ~/.config/capsule-tool/config.cue
- macOS: ~/Library/Application Support/capsule-tool/config.cue
- Windows: %APPDATA%\capsule-tool\config.cue

## Things you can try:
- Check the configuration syntax
- Remove the config file to use defaults

## Example configuration:
~~~cue
guid_tool: "guid-tool"

ui: {
  verbose: false
}
~~~`,
	}

	deAuthNotSupportedIssue = &Issue{
		id: DeAuthNotSupportedId,
		mdMsg: `
# Cannot de-authenticate this capsule!

De-authentication needs an image header of version 3 or newer, because
older headers have no ImageCapsuleSupport field to clear the
authentication bit in.

## Things you can try:
- Check the capsule's image header version:
~~~
$ capsule-tool --dump <file>
~~~
- Regenerate the capsule with a current GenerateCapsule`,
	}

	outputWriteFailedIssue = &Issue{
		id: OutputWriteFailedId,
		mdMsg: `
# Failed to write output file!

We could not write the requested output.

## Common causes:
- The destination directory does not exist
- Permission denied
- The disk is full

## Things you can try:
- Check the destination directory exists and is writable
- Pick another destination with --output`,
	}

	issues = map[Id]*Issue{
		fileNotFoundIssue.Id():       fileNotFoundIssue,
		decodeFailedIssue.Id():       decodeFailedIssue,
		validationFailedIssue.Id():   validationFailedIssue,
		guidToolFailedIssue.Id():     guidToolFailedIssue,
		guidMismatchIssue.Id():       guidMismatchIssue,
		guidsDbInvalidIssue.Id():     guidsDbInvalidIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		deAuthNotSupportedIssue.Id(): deAuthNotSupportedIssue,
		outputWriteFailedIssue.Id():  outputWriteFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
