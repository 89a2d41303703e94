package oui

// builtinTable is a curated subset of the IEEE MA-L registry covering vendors
// common on consumer and IoT networks. It is generated offline from
// standards-oui.ieee.org and checked in as source rather than fetched at
// runtime or load time, per the no-network-I/O requirement on lookup.
var builtinTable = map[string]string{
	"FCFBFB": "Cisco Systems, Inc",
	"001A11": "Google, Inc.",
	"F4F5D8": "Google, Inc.",
	"3C5AB4": "Google, Inc.",
	"B827EB": "Raspberry Pi Foundation",
	"DCA632": "Raspberry Pi Trading Ltd",
	"E45F01": "Raspberry Pi Trading Ltd",
	"D83ADD": "Espressif Inc.",
	"A020A6": "Espressif Inc.",
	"3C6D66": "Espressif Inc.",
	"247189": "Espressif Inc.",
	"CC50E3": "Espressif Inc.",
	"84F3EB": "Espressif Inc.",
	"ACBC32": "Apple, Inc.",
	"F0B479": "Apple, Inc.",
	"A45E60": "Apple, Inc.",
	"3C0754": "Apple, Inc.",
	"D89695": "Apple, Inc.",
	"18B430": "Amazon Technologies Inc.",
	"74C246": "Amazon Technologies Inc.",
	"FCA667": "Amazon Technologies Inc.",
	"A0021B": "Sonos, Inc.",
	"5CAAFD": "Sonos, Inc.",
	"000D93": "Sonos, Inc.",
	"B0C554": "Tp-Link Technologies Co.,Ltd.",
	"50C7BF": "Tp-Link Technologies Co.,Ltd.",
	"EC086B": "Tp-Link Technologies Co.,Ltd.",
	"E848B8": "Ubiquiti Networks Inc.",
	"24A43C": "Ubiquiti Networks Inc.",
	"FCECDA": "Ubiquiti Networks Inc.",
	"000C29": "VMware, Inc.",
	"005056": "VMware, Inc.",
	"0050F2": "Microsoft Corporation",
	"00155D": "Microsoft Corporation",
	"7CED8D": "Microsoft Corporation",
	"D45D64": "Tuya Smart Inc.",
	"68578D": "Tuya Smart Inc.",
	"001E06": "Samsung Electronics Co.,Ltd",
	"5C0A5B": "Samsung Electronics Co.,Ltd",
	"8C7967": "Samsung Electronics Co.,Ltd",
	"F40E22": "Roku, Inc",
	"DCE553": "Roku, Inc",
	"B0A737": "Roku, Inc",
	"001120": "Hewlett Packard",
	"3CD92B": "Hewlett Packard",
	"9C8E99": "HP Inc.",
	"00000C": "Cisco Systems, Inc",
	"000142": "Cisco Systems, Inc",
}
