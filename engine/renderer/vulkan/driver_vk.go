package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rhi/engine/containers"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// surfaceProvider is the part of a platform window the driver needs. A
// *glfw.Window satisfies it.
type surfaceProvider interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type vkBuffer struct {
	buffer      vk.Buffer
	memory      vk.DeviceMemory
	size        uint64
	hostVisible bool
	mapped      []byte
}

type vkImage struct {
	image vk.Image
	// memory is nil for swapchain images.
	memory vk.DeviceMemory
	aspect vk.ImageAspectFlags
	mips   uint32
	layers uint32
}

type vkRenderPass struct {
	pass vk.RenderPass
	// depth is the attachment index of the depth target, or -1.
	depth int
}

type vkSwapchain struct {
	swapchain vk.Swapchain
	images    []handle
	// acquired is waited on when the caller acquires without a semaphore.
	acquired vk.Fence
}

// vulkanDriver runs the driver interface on goki/vulkan. Native objects live
// in a handle table so the backend only ever sees handles.
type vulkanDriver struct {
	debug bool

	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	surface       vk.Surface

	physicalDevice vk.PhysicalDevice
	properties     vk.PhysicalDeviceProperties
	memory         vk.PhysicalDeviceMemoryProperties
	anisotropy     bool

	device      vk.Device
	queue       vk.Queue
	queueFamily uint32

	locks   *VulkanLockPool
	objects *containers.HandleTable
}

func newVulkanDriver(cfg rhi.DeviceConfig) (driver, error) {
	d := &vulkanDriver{
		debug:   cfg.Debug,
		locks:   NewVulkanLockPool(),
		objects: containers.NewHandleTable(),
	}
	var window surfaceProvider
	if cfg.Window != nil {
		w, ok := cfg.Window.(surfaceProvider)
		if !ok {
			return nil, fmt.Errorf("%w: %T cannot create a vulkan surface", rhi.ErrNoSurface, cfg.Window)
		}
		window = w
	}

	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		core.LogError("failed to load the vulkan loader: %s", err)
		return nil, err
	}
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}
	if err := d.createInstance(cfg.ApplicationName, window); err != nil {
		d.destroy()
		return nil, err
	}
	if window != nil {
		core.LogDebug("Creating Vulkan surface...")
		surface, err := window.CreateWindowSurface(d.instance, nil)
		if err != nil {
			d.destroy()
			return nil, fmt.Errorf("%w: %s", rhi.ErrNoSurface, err)
		}
		d.surface = vk.SurfaceFromPointer(surface)
		core.LogDebug("Vulkan surface created.")
	}
	if err := d.selectPhysicalDevice(); err != nil {
		d.destroy()
		return nil, err
	}
	if err := d.createDevice(); err != nil {
		d.destroy()
		return nil, err
	}
	return d, nil
}

func (d *vulkanDriver) name() string { return "vulkan" }

func (d *vulkanDriver) add(obj interface{}) handle {
	return handle(d.objects.Add(obj))
}

func native[T any](d *vulkanDriver, h handle) T {
	v, _ := containers.Lookup[T](d.objects, uint64(h))
	return v
}

func take[T any](d *vulkanDriver, h handle) (T, bool) {
	v, ok := containers.Lookup[T](d.objects, uint64(h))
	if ok {
		d.objects.Remove(uint64(h))
	}
	return v, ok
}

func (d *vulkanDriver) createInstance(appName string, window surfaceProvider) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("rhi"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	var extensions []string
	if window != nil {
		extensions = append(extensions, window.GetRequiredInstanceExtensions()...)
	}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if d.debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkInstanceLayers(layers); err != nil {
			core.LogWarn("%s, continuing without validation", err)
			layers = nil
		}
	}
	for _, e := range extensions {
		core.LogDebug("instance extension: %s", e)
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, nil, &d.instance); res != vk.Success {
		return resultError("vkCreateInstance", res)
	}
	if err := vk.InitInstance(d.instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if d.debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(d.instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", err)
		} else {
			d.debugCallback = dbg
		}
	}
	return nil
}

func checkInstanceLayers(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if cString(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s", name)
		}
	}
	return nil
}

// selectPhysicalDevice picks the first device with a graphics queue that can
// also present, preferring discrete GPUs.
func (d *vulkanDriver) selectPhysicalDevice() error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(d.instance, &count, nil); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}
	if count == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(d.instance, &count, devices); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}

	best, bestScore := -1, -1
	var bestFamily uint32
	for i, pd := range devices {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		family, ok := d.findQueueFamily(pd)
		if !ok {
			core.LogInfo("Device '%s' has no queue that can draw and present, skipping.", cString(props.DeviceName[:]))
			continue
		}
		if d.surface != vk.NullSurface && !hasDeviceExtension(pd, vk.KhrSwapchainExtensionName) {
			core.LogInfo("Device '%s' lacks %s, skipping.", cString(props.DeviceName[:]), vk.KhrSwapchainExtensionName)
			continue
		}
		score := 0
		switch props.DeviceType {
		case vk.PhysicalDeviceTypeDiscreteGpu:
			score = 3
		case vk.PhysicalDeviceTypeIntegratedGpu:
			score = 2
		case vk.PhysicalDeviceTypeVirtualGpu:
			score = 1
		}
		if score > bestScore {
			best, bestScore, bestFamily = i, score, family
		}
	}
	if best < 0 {
		return fmt.Errorf("no physical devices were found which meet the requirements")
	}

	d.physicalDevice = devices[best]
	d.queueFamily = bestFamily
	vk.GetPhysicalDeviceProperties(d.physicalDevice, &d.properties)
	d.properties.Deref()
	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevice, &d.memory)
	d.memory.Deref()
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(d.physicalDevice, &features)
	features.Deref()
	d.anisotropy = features.SamplerAnisotropy == vk.True

	core.LogInfo("Selected device: '%s'.", cString(d.properties.DeviceName[:]))
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version.Major(vk.Version(d.properties.ApiVersion)),
		vk.Version.Minor(vk.Version(d.properties.ApiVersion)),
		vk.Version.Patch(vk.Version(d.properties.ApiVersion)),
	)
	for j := 0; j < int(d.memory.MemoryHeapCount); j++ {
		d.memory.MemoryHeaps[j].Deref()
		sizeGib := float64(d.memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(d.memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", sizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", sizeGib)
		}
	}
	return nil
}

// findQueueFamily finds a family with graphics support that can present to the
// surface, when there is one.
func (d *vulkanDriver) findQueueFamily(pd vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)
	for i := range families {
		families[i].Deref()
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit == 0 {
			continue
		}
		if d.surface == vk.NullSurface {
			return uint32(i), true
		}
		var present vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), d.surface, &present); res != vk.Success {
			continue
		}
		if present == vk.True {
			return uint32(i), true
		}
	}
	return 0, false
}

func hasDeviceExtension(pd vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func (d *vulkanDriver) createDevice() error {
	core.LogInfo("Creating logical device...")
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	features := vk.PhysicalDeviceFeatures{}
	if d.anisotropy {
		features.SamplerAnisotropy = vk.True
	}

	var extensions []string
	if d.surface != vk.NullSurface {
		extensions = append(extensions, vk.KhrSwapchainExtensionName)
	}
	if hasDeviceExtension(d.physicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	if res := vk.CreateDevice(d.physicalDevice, &deviceCreateInfo, nil, &d.device); res != vk.Success {
		return resultError("vkCreateDevice", res)
	}
	vk.GetDeviceQueue(d.device, d.queueFamily, 0, &d.queue)
	d.locks.SetQueueFamily(d.queueFamily)
	core.LogInfo("Logical device created.")
	return nil
}

func (d *vulkanDriver) waitIdle() {
	d.locks.SafeQueueCall(d.queueFamily, func() error {
		if res := vk.DeviceWaitIdle(d.device); !VulkanResultIsSuccess(res) {
			core.LogError("vkDeviceWaitIdle failed: '%s'", VulkanResultString(res, true))
		}
		return nil
	})
}

// destroy releases the device, the surface and the instance. Every other
// object must have been destroyed through the backend.
func (d *vulkanDriver) destroy() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		if n := d.objects.Len(); n > 0 {
			core.LogWarn("vulkan driver destroyed with %d native objects alive", n)
		}
		core.LogDebug("Destroying Vulkan device...")
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debugCallback, nil)
		d.debugCallback = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has all of propertyFlags, or -1.
func (d *vulkanDriver) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func (d *vulkanDriver) allocate(req vk.MemoryRequirements, hostVisible bool) (vk.DeviceMemory, error) {
	req.Deref()
	flags := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if hostVisible {
		flags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	index := d.FindMemoryIndex(req.MemoryTypeBits, flags)
	if index < 0 {
		return nil, fmt.Errorf("no memory type with flags %#x", uint32(flags))
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: uint32(index),
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &allocInfo, nil, &mem); res != vk.Success {
		return nil, resultError("vkAllocateMemory", res)
	}
	return mem, nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
