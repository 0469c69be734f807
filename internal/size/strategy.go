package size

import (
	"regexp"
	"strings"
)

// toolStrategies maps vendor:architecture pairs to a binary-size-tool
// configuration, for board families whose console summary omits figures.
// The SAM and SAMD cores, for example, are not configured to report RAM
// usage, and the data segment is missing from their flash totals.
var toolStrategies = map[string]ToolExtractor{
	"arduino:sam": {
		Tool:          "arm-none-eabi-size",
		FlashSections: regexp.MustCompile(`^\.(text|data)$`),
		RAMSections:   regexp.MustCompile(`^\.(data|bss)$`),
	},
	"arduino:samd": {
		Tool:          "arm-none-eabi-size",
		FlashSections: regexp.MustCompile(`^\.(text|data)$`),
		RAMSections:   regexp.MustCompile(`^\.(data|bss)$`),
	},
}

// ForBoard returns the extraction strategy for the given board identifier.
// The console-scrape strategy is the default; specific families use a size
// tool instead.
func ForBoard(fqbn string) Extractor {
	parts := strings.SplitN(fqbn, ":", 3)
	if len(parts) >= 2 {
		if tool, ok := toolStrategies[parts[0]+":"+parts[1]]; ok {
			return tool
		}
	}
	return ConsoleExtractor{}
}

// NeedsBuildPath reports whether the board's strategy requires the compiled
// binary, in which case the invoker must direct artifacts to a known
// location.
func NeedsBuildPath(fqbn string) bool {
	_, isTool := ForBoard(fqbn).(ToolExtractor)
	return isTool
}
