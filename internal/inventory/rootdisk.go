package inventory

// ResolveRootDisk returns the kernel name of the physical disk backing "/",
// or "" if nothing is mounted there.
//
// The root filesystem may sit on a stacked volume (LVM logical volume on a
// partition on a disk), so the parent chain is followed until it runs out.
// A malformed chain containing a cycle terminates at the cycle-entry node
// rather than looping.
func ResolveRootDisk(devs []BlockDevice) string {
	var rootName string
	for _, d := range devs {
		if d.Mountpoint == "/" {
			rootName = d.Name
			break
		}
	}
	if rootName == "" {
		return ""
	}

	parentOf := make(map[string]string, len(devs))
	for _, d := range devs {
		if d.Name != "" && d.Parent != "" {
			parentOf[d.Name] = d.Parent
		}
	}

	cur := rootName
	seen := map[string]bool{}
	for {
		parent, ok := parentOf[cur]
		if !ok || parent == "" {
			return cur
		}
		if seen[parent] {
			return parent
		}
		seen[parent] = true
		cur = parent
	}
}
