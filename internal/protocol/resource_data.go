package protocol

import (
	"strconv"
	"strings"
)

// ResourceFields is a decoded resource descriptor from ^RAF/^RMF.
// Empty strings mean the key was absent.
type ResourceFields struct {
	Protocol string
	User     string
	Password string
	Host     string
	File     string
	Path     string
	Refresh  int
}

// ParseResourceData decodes "%P0%Hhost%Apath%Ffile%Uuser%Spass%R10".
// %P is 0 for http and 1 for ftp. Unknown keys are ignored.
func ParseResourceData(data string) ResourceFields {
	var rf ResourceFields
	for _, part := range strings.Split(data, "%") {
		if part == "" {
			continue
		}
		key, val := part[0], part[1:]
		switch key {
		case 'P':
			switch val {
			case "0":
				rf.Protocol = "http"
			case "1":
				rf.Protocol = "ftp"
			default:
				rf.Protocol = val
			}
		case 'U':
			rf.User = val
		case 'S':
			rf.Password = val
		case 'H':
			rf.Host = val
		case 'F':
			rf.File = val
		case 'A':
			rf.Path = val
		case 'R':
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				rf.Refresh = n
			}
		}
	}
	return rf
}
