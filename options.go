package sheetkit

import "github.com/tsawler/sheetkit/xlsx"

// ExtractOptions holds configuration for extraction.
type ExtractOptions struct {
	// Sheet selection by name; nil means every visible worksheet
	sheets []string

	includeHidden  bool
	includeHeaders bool
	delimiter      string

	// Loading
	concurrency int
}

// defaultOptions returns the default extraction options.
func defaultOptions() ExtractOptions {
	return ExtractOptions{
		sheets:         nil,
		includeHidden:  false,
		includeHeaders: false,
		delimiter:      "\t",
		concurrency:    xlsx.DefaultOptions().Concurrency,
	}
}

// clone creates a deep copy of ExtractOptions.
func (o ExtractOptions) clone() ExtractOptions {
	newOpts := o
	if o.sheets != nil {
		newOpts.sheets = make([]string, len(o.sheets))
		copy(newOpts.sheets, o.sheets)
	}
	return newOpts
}

func (o ExtractOptions) workbookOptions() xlsx.Options {
	return xlsx.Options{Concurrency: o.concurrency}
}
