package chunkupload

import "slices"

// AddFile appends a file to the queue.
//
// It does nothing if a file with the same name is already queued.
func (u *Uploader) AddFile(file File) {
	u.AddFileWithPayload(file, nil)
}

// AddFileWithPayload is like AddFile but attaches a value to the item.
//
// The payload is available on every FileItem passed to hooks and
// resolvers.
func (u *Uploader) AddFileWithPayload(file File, payload any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.addLocked(file, payload)
}

// AddFiles appends files to the queue in order, skipping duplicates.
func (u *Uploader) AddFiles(files []File) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, file := range files {
		u.addLocked(file, nil)
	}
}

func (u *Uploader) addLocked(file File, payload any) {
	if u.indexLocked(file.Name()) >= 0 {
		return
	}

	u.items = append(u.items, &FileItem{File: file, Payload: payload})
	u.size += file.Size()
}

// RemoveFile removes the file with the same name from the queue.
//
// It does nothing if the file isn't queued or is being uploaded.
func (u *Uploader) RemoveFile(file File) {
	u.mu.Lock()
	defer u.mu.Unlock()

	i := u.indexLocked(file.Name())
	if i < 0 || u.items[i].IsUploading {
		return
	}

	u.size -= u.items[i].File.Size()
	u.items = slices.Delete(u.items, i, i+1)
}

// RemoveItem removes the item's file from the queue.
func (u *Uploader) RemoveItem(item FileItem) {
	u.RemoveFile(item.File)
}

// ClearQueue removes every file that is not being uploaded.
func (u *Uploader) ClearQueue() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.items = slices.DeleteFunc(u.items, func(item *FileItem) bool {
		return !item.IsUploading
	})

	u.size = 0
	for _, item := range u.items {
		u.size += item.File.Size()
	}
}

// Queue returns a snapshot of the queue in insertion order.
func (u *Uploader) Queue() []FileItem {
	u.mu.Lock()
	defer u.mu.Unlock()

	queue := make([]FileItem, len(u.items))
	for i, item := range u.items {
		queue[i] = *item
	}
	return queue
}

func (u *Uploader) indexLocked(name string) int {
	return slices.IndexFunc(u.items, func(item *FileItem) bool {
		return item.File.Name() == name
	})
}

// snapshot returns a copy of the item's current state.
func (u *Uploader) snapshot(item *FileItem) FileItem {
	u.mu.Lock()
	defer u.mu.Unlock()
	return *item
}
