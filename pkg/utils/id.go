package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID prefixes used in stored documents
const (
	PrefixStory   = "s"
	PrefixChapter = "c"
	PrefixUser    = "u"
	PrefixComment = "cmt"
)

// GenerateID returns prefix_<unix millis>_<random suffix>.
// The millisecond part keeps ids sortable like the ones already stored; the suffix avoids collisions.
func GenerateID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}

func GenerateStoryID() string { return GenerateID(PrefixStory) }

func GenerateChapterID() string { return GenerateID(PrefixChapter) }

func GenerateUserID() string { return GenerateID(PrefixUser) }

func GenerateCommentID() string { return GenerateID(PrefixComment) }
