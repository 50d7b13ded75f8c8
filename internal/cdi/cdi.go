package cdi

import (
	"fmt"
	"slices"

	"tags.cncf.io/container-device-interface/specs-go"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

const (
	Vendor = "furiosa.ai"
	Class  = "npu"
	Kind   = Vendor + "/" + Class

	readWritePermissions = "rw"
	readOnlyOpt          = "ro"
	bindOpt              = "bind"
)

// NewSpec renders allocated device files as one CDI device each. The owning
// device's management directory is bind-mounted read-only alongside its files.
func NewSpec(files []device.DeviceFile, devices []device.Device) (*specs.Spec, error) {
	byIndex := make(map[uint8]device.Device, len(devices))
	for _, d := range devices {
		byIndex[d.DeviceIndex()] = d
	}

	spec := &specs.Spec{
		Version: specs.CurrentVersion,
		Kind:    Kind,
	}

	for _, file := range files {
		owner, ok := byIndex[file.DeviceIndex()]
		if !ok {
			return nil, fmt.Errorf("device file %s has no owning device", file.Filename())
		}

		spec.Devices = append(spec.Devices, specs.Device{
			Name: file.Filename(),
			Annotations: map[string]string{
				Vendor + "/arch":       owner.Arch().String(),
				Vendor + "/uuid":       owner.DeviceUUID(),
				Vendor + "/core-range": file.CoreRange().String(),
			},
			ContainerEdits: specs.ContainerEdits{
				DeviceNodes: []*specs.DeviceNode{
					{
						Path:        file.Path(),
						HostPath:    file.Path(),
						Permissions: readWritePermissions,
					},
				},
				Mounts: []*specs.Mount{
					{
						HostPath:      owner.ManagementDir(),
						ContainerPath: owner.ManagementDir(),
						Options:       []string{readOnlyOpt, bindOpt},
					},
				},
			},
		})
	}

	return spec, nil
}

// QualifiedNames returns the vendor/class=name reference of every device in spec.
func QualifiedNames(spec *specs.Spec) []string {
	var out []string
	for _, d := range spec.Devices {
		out = append(out, spec.Kind+"="+d.Name)
	}
	return out
}

// Edits is the container configuration of a CDI spec flattened for runtimes
// that take device nodes and mounts directly.
type Edits struct {
	DeviceNodes []DeviceNode `json:"device_nodes" yaml:"device_nodes"`
	Mounts      []Mount      `json:"mounts" yaml:"mounts"`
}

type DeviceNode struct {
	HostPath      string `json:"host_path" yaml:"host_path"`
	ContainerPath string `json:"container_path" yaml:"container_path"`
	Permissions   string `json:"permissions" yaml:"permissions"`
}

type Mount struct {
	HostPath      string `json:"host_path" yaml:"host_path"`
	ContainerPath string `json:"container_path" yaml:"container_path"`
	ReadOnly      bool   `json:"read_only" yaml:"read_only"`
}

// FlattenEdits collects the device nodes and mounts of every device in spec.
// A management directory shared by several files of one NPU is mounted once.
func FlattenEdits(spec *specs.Spec) Edits {
	edits := Edits{DeviceNodes: []DeviceNode{}, Mounts: []Mount{}}
	mounted := map[string]struct{}{}

	for _, d := range spec.Devices {
		for _, node := range d.ContainerEdits.DeviceNodes {
			edits.DeviceNodes = append(edits.DeviceNodes, DeviceNode{
				HostPath:      node.HostPath,
				ContainerPath: node.Path,
				Permissions:   node.Permissions,
			})
		}
		for _, mount := range d.ContainerEdits.Mounts {
			if _, ok := mounted[mount.ContainerPath]; ok {
				continue
			}
			mounted[mount.ContainerPath] = struct{}{}
			edits.Mounts = append(edits.Mounts, Mount{
				HostPath:      mount.HostPath,
				ContainerPath: mount.ContainerPath,
				ReadOnly:      slices.Contains(mount.Options, readOnlyOpt),
			})
		}
	}
	return edits
}
