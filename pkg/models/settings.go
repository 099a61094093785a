package models

// DocumentName identifies one of the whole-file documents kept by the store
type DocumentName string

const (
	DocStories        DocumentName = "stories"
	DocAnnouncement   DocumentName = "announcement"
	DocGuide          DocumentName = "guide"
	DocUploadSettings DocumentName = "upload_settings"
	DocGenres         DocumentName = "genres"
	DocComments       DocumentName = "comments"
)

// Documents lists every document name the store accepts
var Documents = []DocumentName{
	DocStories,
	DocAnnouncement,
	DocGuide,
	DocUploadSettings,
	DocGenres,
	DocComments,
}

// ParseDocumentName validates a document name supplied by a client
func ParseDocumentName(v string) (DocumentName, bool) {
	for _, d := range Documents {
		if string(d) == v {
			return d, true
		}
	}
	return "", false
}

// FileName is the on-disk name of the document
func (d DocumentName) FileName() string {
	return string(d) + ".json"
}

// Announcement is the site-wide banner
type Announcement struct {
	Message   string `json:"message"`
	IsShow    bool   `json:"isShow"`
	UpdatedAt string `json:"updatedAt"`
}

// Guide is the reader/uploader guide shown on the help page
type Guide struct {
	Content   string `json:"content"`
	UpdatedAt string `json:"updatedAt"`
}

// UploadSettings controls which upload transports translators may use
type UploadSettings struct {
	AllowServer      bool `json:"allowServer"`
	AllowDrive       bool `json:"allowDrive"`
	AllowCanva       bool `json:"allowCanva"`
	AllowDriveFolder bool `json:"allowDriveFolder"`
}

// DefaultUploadSettings allows everything. Stored settings are merged over it.
func DefaultUploadSettings() UploadSettings {
	return UploadSettings{
		AllowServer:      true,
		AllowDrive:       true,
		AllowCanva:       true,
		AllowDriveFolder: true,
	}
}

// DefaultGenres is served when the genres document is missing or empty
func DefaultGenres() []string {
	return []string{"Furry", "Bara", "Chubby", "Muscle", "Yaoi", "BDSM", "Cute", "SFW", "NSFW"}
}
