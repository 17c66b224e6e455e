package model

// Persistable is a model that can be written to and read back from a folder.
type Persistable interface {
	Save(dir string) error
	Load(dir string) error
}

// Handle associates a model with the folder it was loaded from or should be
// saved to. It never loads, saves, copies or validates the model itself.
type Handle[M Persistable] struct {
	model      M
	folderPath string
}

// New creates a handle for m stored at folderPath.
func New[M Persistable](m M, folderPath string) *Handle[M] {
	return &Handle[M]{model: m, folderPath: folderPath}
}

// Model returns the wrapped model.
func (h *Handle[M]) Model() M { return h.model }

// FolderPath returns the current folder path.
func (h *Handle[M]) FolderPath() string { return h.folderPath }

// SetFolderPath replaces the folder path. The path is not checked.
func (h *Handle[M]) SetFolderPath(path string) { h.folderPath = path }
