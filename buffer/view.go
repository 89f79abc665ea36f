// Package buffer provides the byte containers snips and sockets share:
// View for contiguous memory and VectorisedView for a packet spread over
// several snips
package buffer

// View is a slice of a buffer, with convenience methods
type View []byte

// NewView allocates a new buffer and returns an initialized view that covers
// the whole buffer
func NewView(size int) View {
	return make(View, size)
}

// NewViewFromBytes allocates a new buffer and copies in the given bytes
func NewViewFromBytes(b []byte) View {
	return append(View(nil), b...)
}

// CapLength irreversibly reduces the length of the visible section of the
// buffer to the value specified
func (v *View) CapLength(length int) {
	// We also set the slice cap because if we don't, one would be able to
	// expand the view back to include the region just excluded. We want to
	// prevent that to avoid potential data leak if we have uninitialized
	// data in excluding region
	*v = (*v)[:length:length]
}

// TrimFront removes the first "count" bytes from the visible section of the
// buffer
func (v *View) TrimFront(count int) {
	*v = (*v)[count:]
}

// ToVectorisedView returns a VectorisedView using views as the storage for
// its only element
func (v View) ToVectorisedView(views [1]View) VectorisedView {
	views[0] = v
	return NewVectorisedView(views[:], len(v))
}

// VectorisedView is a vectorised version of View using non contigous memory
// It supports all the convenience methods supported by View
type VectorisedView struct {
	views []View
	size  int
}

// NewVectorisedView creates a new vectorised view from an already-allocated slice
// of View and sets its size
func NewVectorisedView(views []View, size int) VectorisedView {
	return VectorisedView{views: views, size: size}
}

// SetSize unsafely sets the size of the VectorisedView
func (vv *VectorisedView) SetSize(size int) {
	vv.size = size
}

// SetViews unsafely sets the views of the VectorisedView
func (vv *VectorisedView) SetViews(views []View) {
	vv.views = views
}

// AppendView appends v to the vectorised view, skipping empty views
func (vv *VectorisedView) AppendView(v View) {
	if len(v) == 0 {
		return
	}
	vv.views = append(vv.views, v)
	vv.size += len(v)
}

// Views returns the views making up the vectorised view
func (vv *VectorisedView) Views() []View {
	return vv.views
}

// First returns the first view of the vectorised view
// It panics if the vectorised view is empty
func (vv *VectorisedView) First() View {
	if len(vv.views) == 0 {
		panic("vview is empty")
	}
	return vv.views[0]
}

// TrimFront removes the first "count" bytes of the vectorised view
func (vv *VectorisedView) TrimFront(count int) {
	for count > 0 && len(vv.views) > 0 {
		if count < len(vv.views[0]) {
			vv.size -= count
			vv.views[0].TrimFront(count)
			return
		}
		count -= len(vv.views[0])
		vv.RemoveFirst()
	}
}

// RemoveFirst removes the first view of the vectorised view
func (vv *VectorisedView) RemoveFirst() {
	if len(vv.views) == 0 {
		return
	}
	vv.size -= len(vv.views[0])
	vv.views = vv.views[1:]
}

// Clone returns a clone of this VectorisedView. If buffer is non-nil and
// large enough, it is used as the backing slice for the views
func (vv *VectorisedView) Clone(buffer []View) VectorisedView {
	return VectorisedView{views: append(buffer[:0], vv.views...), size: vv.size}
}

// CopyTo copies the content of the vectorised view into dst and returns the
// number of bytes copied
func (vv *VectorisedView) CopyTo(dst []byte) int {
	n := 0
	for i := range vv.views {
		c := copy(dst[n:], vv.views[i])
		n += c
		if n == len(dst) {
			break
		}
	}
	return n
}

// ToView returns a single view containing the content of the vectorised view
func (vv *VectorisedView) ToView() View {
	v := make([]byte, vv.size)
	vv.CopyTo(v)
	return v
}

// Size returns the size in bytes of the entire content stored in the vectorised view
func (vv *VectorisedView) Size() int {
	return vv.size
}
